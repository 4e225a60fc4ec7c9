// Package testutil provides shared test helpers: temporary world stores, seed records and polling.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/starford/dreamland/internal/models"
	"github.com/starford/dreamland/internal/store"
)

// TestDB creates a temporary SQLite world store that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	db, _ := TestDBWithPath(t)
	return db
}

// TestDBWithPath is TestDB that also returns the database file path, for
// tests that need a second connection.
func TestDBWithPath(t *testing.T) (*store.DB, string) {
	t.Helper()
	dbFile, err := os.CreateTemp("", "dreamland-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() {
		os.Remove(dbFile.Name())
		os.Remove(dbFile.Name() + "-wal")
		os.Remove(dbFile.Name() + "-shm")
	})

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db, dbFile.Name()
}

// SeedDream stores an unprocessed dream with the given content.
func SeedDream(t *testing.T, db *store.DB, content string) *models.Dream {
	t.Helper()
	d, err := db.CreateDream(context.Background(), models.Dream{
		Date:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Cycle:    1,
		Content:  content,
		Language: "en",
	})
	if err != nil {
		t.Fatalf("CreateDream: %v", err)
	}
	return d
}

// SeedLocation stores a location with the given name, position and frequency.
func SeedLocation(t *testing.T, db *store.DB, name string, x, y float64, frequency int) *models.Location {
	t.Helper()
	l, err := db.CreateLocation(context.Background(), models.LocationInput{
		Name:      name,
		Archetype: "home",
		Layer:     models.LayerPrimary,
		X:         x,
		Y:         y,
	}, frequency)
	if err != nil {
		t.Fatalf("CreateLocation: %v", err)
	}
	return l
}

// Eventually polls cond until it returns true or the timeout expires.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

// InboxDir creates a temporary journal inbox directory.
func InboxDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}
