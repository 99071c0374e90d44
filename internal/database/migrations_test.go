package database

import (
	"context"
	"testing"
)

func TestMigrate_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	v, err := db.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion returned error: %v", err)
	}
	if v != LatestSchemaVersion() {
		t.Fatalf("expected version %d, got %d", LatestSchemaVersion(), v)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate returned error: %v", err)
	}
	v2, _ := db.SchemaVersion(ctx)
	if v2 != v {
		t.Fatalf("expected version to stay %d, got %d", v, v2)
	}
}

func TestMigrate_CreatesStorefrontTables(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	conn, err := db.Conn(ctx)
	if err != nil {
		t.Fatalf("Conn returned error: %v", err)
	}
	for _, table := range storefrontTables {
		var n int
		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n); err != nil {
			t.Fatalf("failed to inspect %s: %v", table, err)
		}
		if n != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestOptimizeAndVacuum(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Optimize(ctx); err != nil {
		t.Fatalf("Optimize returned error: %v", err)
	}
	if err := db.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum returned error: %v", err)
	}
}
