package database

import (
	"context"
	"path/filepath"
	"testing"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "test.db")}
}

// newTestDB returns a migrated database backed by a temporary SQLite file.
func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(testConfig(t))
	if err != nil {
		t.Fatalf("failed to create db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Prepare(context.Background()); err != nil {
		t.Fatalf("failed to prepare db: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *DB, name string, price float64, stock int) *Product {
	t.Helper()
	p, err := db.Products.Create(context.Background(), &Product{Name: name, Price: price, Stock: stock})
	if err != nil {
		t.Fatalf("failed to seed product %q: %v", name, err)
	}
	return p
}

func ptr[T any](v T) *T {
	return &v
}
