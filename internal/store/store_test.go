package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/intern"
	"github.com/roach88/slim/internal/slim"
	"github.com/roach88/slim/internal/testutil"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"payloads", "checkpoints"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		if err := s.verifyPragma(tt.name, tt.expected); err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	s.Close()

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	e := affine(2)

	cp, err := s.Save(ctx, "doubler", e)
	require.NoError(t, err)
	assert.Equal(t, "doubler", cp.Key)
	assert.Equal(t, int64(1), cp.Seq)
	assert.Equal(t, slim.MustContentHash(e), cp.Hash)

	got, err := s.Load(ctx, cp.ID)
	require.NoError(t, err)
	testutil.AssertExpressionEqual(t, e, got)

	stored, err := s.Checkpoint(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, cp, stored)
}

func TestCheckpointIDsAreUUIDv7(t *testing.T) {
	s := createTestStore(t)
	cp, err := s.Save(context.Background(), "k", affine(1))
	require.NoError(t, err)

	id, err := uuid.Parse(cp.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestSeqIsPerKey(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	var saved []Checkpoint
	for k := 1; k <= 3; k++ {
		cp, err := s.Save(ctx, "a", affine(k))
		require.NoError(t, err)
		saved = append(saved, cp)
	}
	other, err := s.Save(ctx, "b", affine(9))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other.Seq)

	history, err := s.History(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, saved, history)

	latest, e, err := s.Latest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, saved[2], latest)
	assert.True(t, slim.ExpressionEqual(affine(3), e))
}

func TestIdenticalExpressionsSharePayload(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	first, err := s.Save(ctx, "k", affine(4))
	require.NoError(t, err)
	second, err := s.Save(ctx, "k", affine(4))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Hash, second.Hash)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM payloads").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPutPayload(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	data, err := slim.Marshal(affine(5))
	require.NoError(t, err)

	hash, err := s.PutPayload(ctx, data)
	require.NoError(t, err)
	again, err := s.PutPayload(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	body, err := s.Payload(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, data, body)

	_, err = s.PutPayload(ctx, nil)
	assert.True(t, slim.IsArgumentError(err))
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.Load(ctx, uuid.Must(uuid.NewV7()).String())
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, _, err = s.Latest(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	_, err = s.Payload(ctx, "sha256:0000")
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	history, err := s.History(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCorruptPayloadIsDetected(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	cp, err := s.Save(ctx, "k", affine(2))
	require.NoError(t, err)

	data, err := slim.Marshal(affine(3))
	require.NoError(t, err)
	_, err = s.db.Exec("UPDATE payloads SET body = ? WHERE hash = ?", data, cp.Hash)
	require.NoError(t, err)

	_, err = s.Load(ctx, cp.ID)
	assert.True(t, errors.Is(err, ErrCorrupt), "got %v", err)
}

func TestSaveArgumentErrors(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	_, err := s.Save(ctx, "", affine(1))
	assert.True(t, slim.IsArgumentError(err))
	_, err = s.Save(ctx, "k", nil)
	assert.True(t, slim.IsArgumentError(err))
	_, err = s.Prune(ctx, "k", -1)
	assert.True(t, slim.IsArgumentError(err))
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	for k := 1; k <= 4; k++ {
		_, err := s.Save(ctx, "a", affine(k))
		require.NoError(t, err)
	}
	kept, err := s.Save(ctx, "b", affine(1))
	require.NoError(t, err)

	deleted, err := s.Prune(ctx, "a", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	history, err := s.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(3), history[0].Seq)
	assert.Equal(t, int64(4), history[1].Seq)

	// affine(1) is still referenced by key b; affine(2) is gone.
	_, err = s.Payload(ctx, kept.Hash)
	assert.NoError(t, err)
	_, err = s.Payload(ctx, slim.MustContentHash(affine(2)))
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

	next, err := s.Save(ctx, "a", affine(5))
	require.NoError(t, err)
	assert.Equal(t, int64(5), next.Seq)
}

func TestLoadInternsThroughCache(t *testing.T) {
	ctx := context.Background()
	cache := intern.NewCache()
	s := createTestStore(t, WithCache(cache))

	first, err := s.Save(ctx, "a", affine(2))
	require.NoError(t, err)
	second, err := s.Save(ctx, "b", affine(2))
	require.NoError(t, err)

	x, err := s.Load(ctx, first.ID)
	require.NoError(t, err)
	y, err := s.Load(ctx, second.ID)
	require.NoError(t, err)
	assert.Same(t, x, y)
	assert.Positive(t, cache.Len())
}

func TestDeterministicIDs(t *testing.T) {
	ctx := context.Background()
	ids := testutil.NewSequentialIDs()
	s := createTestStore(t, WithIDGenerator(ids.Next))

	for _, key := range []string{"b", "a", "c"} {
		_, err := s.Save(ctx, key, affine(1))
		require.NoError(t, err)
	}

	var got []string
	rows, err := s.db.Query("SELECT id FROM checkpoints ORDER BY id COLLATE BINARY ASC")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var id string
		require.NoError(t, rows.Scan(&id))
		got = append(got, id)
	}
	require.NoError(t, rows.Err())

	ids.Reset()
	assert.Equal(t, []string{ids.Next(), ids.Next(), ids.Next()}, got)
}
