package testutil

import (
	"path/filepath"
	"testing"

	"github.com/fastygo/exportflow/repository/boltdb"
)

// NewDocumentStore opens a bbolt document store in the test's temp dir and
// closes it when the test ends.
func NewDocumentStore(t testing.TB) *boltdb.DocumentStore {
	t.Helper()

	store, err := boltdb.Open(filepath.Join(t.TempDir(), "exportflow.db"))
	if err != nil {
		t.Fatalf("open document store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
