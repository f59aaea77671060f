// Package testutil provides shared test helpers for setting up state stores and repositories.
package testutil

import (
	"os"
	"testing"

	"github.com/vale-ieu/calendario/internal/models"
	"github.com/vale-ieu/calendario/internal/repository"
	"github.com/vale-ieu/calendario/internal/storage"
)

// TestStore creates a temporary state directory with a storage.Provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	stateDir := t.TempDir()
	store, err := storage.NewFS(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	return stateDir, store
}

// TestSQLite creates a temporary SQLite store that is automatically cleaned up.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "calendario-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepo creates a repository with default categories, seeded with
// the given events.
func TestRepo(t *testing.T, events ...models.Event) *repository.Repository {
	t.Helper()
	repo := repository.New(nil, nil)
	for _, e := range events {
		if _, err := repo.Upsert(e); err != nil {
			t.Fatalf("seed event %q: %v", e.Title, err)
		}
	}
	return repo
}
