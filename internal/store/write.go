package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/slim/internal/slim"
)

// Checkpoint is one saved state of a key.
type Checkpoint struct {
	ID   string // UUIDv7 unless WithIDGenerator is set
	Key  string
	Seq  int64 // per-key logical clock, starts at 1
	Hash string
}

// PutPayload stores an encoded expression and returns its content hash.
// Uses ON CONFLICT(hash) DO NOTHING - storing the same bytes twice is a no-op.
func (s *Store) PutPayload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", slim.NewArgumentError("payload", "payload is empty")
	}
	hash := slim.HashPayload(data)
	if err := putPayload(ctx, s.db, hash, data); err != nil {
		return "", fmt.Errorf("put payload: %w", err)
	}
	return hash, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func putPayload(ctx context.Context, db execer, hash string, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payloads (hash, body, size)
		VALUES (?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, data, len(data))
	return err
}

// Save serializes e and records it as the next checkpoint of key.
// Equal expressions share one payload row.
func (s *Store) Save(ctx context.Context, key string, e slim.Expression) (Checkpoint, error) {
	if key == "" {
		return Checkpoint{}, slim.NewArgumentError("key", "checkpoint key is empty")
	}
	if e == nil {
		return Checkpoint{}, slim.NewArgumentError("expression", "expression is nil")
	}
	data, err := slim.Marshal(e)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("save %s: %w", key, err)
	}

	cp := Checkpoint{
		ID:   s.newID(),
		Key:  key,
		Hash: slim.HashPayload(data),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("save %s: begin: %w", key, err)
	}
	defer tx.Rollback()

	if err := putPayload(ctx, tx, cp.Hash, data); err != nil {
		return Checkpoint{}, fmt.Errorf("save %s: %w", key, err)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM checkpoints WHERE key = ?`, key,
	).Scan(&cp.Seq); err != nil {
		return Checkpoint{}, fmt.Errorf("save %s: next seq: %w", key, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO checkpoints (id, key, seq, payload_hash)
		VALUES (?, ?, ?, ?)
	`, cp.ID, cp.Key, cp.Seq, cp.Hash); err != nil {
		return Checkpoint{}, fmt.Errorf("save %s: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return Checkpoint{}, fmt.Errorf("save %s: commit: %w", key, err)
	}

	s.logger.Info("saved checkpoint",
		"key", cp.Key,
		"seq", cp.Seq,
		"id", cp.ID,
		"hash", cp.Hash,
		"bytes", len(data))
	return cp, nil
}

// Prune keeps the newest keep checkpoints of key, deletes the rest and
// removes payloads no checkpoint refers to. Returns the number of
// checkpoints deleted.
func (s *Store) Prune(ctx context.Context, key string, keep int) (int64, error) {
	if keep < 0 {
		return 0, slim.NewArgumentError("keep", "keep must not be negative, got %d", keep)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("prune %s: begin: %w", key, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM checkpoints
		WHERE key = ? AND id NOT IN (
			SELECT id FROM checkpoints
			WHERE key = ?
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
	`, key, key, keep)
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", key, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune %s: %w", key, err)
	}

	orphans, err := tx.ExecContext(ctx, `
		DELETE FROM payloads
		WHERE NOT EXISTS (SELECT 1 FROM checkpoints c WHERE c.payload_hash = payloads.hash)
	`)
	if err != nil {
		return 0, fmt.Errorf("prune %s: payloads: %w", key, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("prune %s: commit: %w", key, err)
	}

	freed, _ := orphans.RowsAffected()
	s.logger.Info("pruned checkpoints", "key", key, "kept", keep, "deleted", deleted, "payloads_freed", freed)
	return deleted, nil
}

// isNotFound reports whether err is a missing-row error.
func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
