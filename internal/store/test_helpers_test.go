package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/slim/internal/slim"
	"github.com/roach88/slim/internal/testutil"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func affine(k int) *slim.Lambda { return testutil.Affine(k) }
