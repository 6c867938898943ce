package repository

import (
	"context"
	"testing"
)

func TestMetadataSetAndGet(t *testing.T) {
	repo := NewMetadataRepository(setupTestDB(t))
	ctx := context.Background()

	if _, ok, err := repo.Get(ctx, "missing"); err != nil || ok {
		t.Errorf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := repo.Set(ctx, "schema_version", "1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, ok, err := repo.Get(ctx, "schema_version")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if value != "1" {
		t.Errorf("value = %q, want 1", value)
	}

	// Setting an existing key overwrites it.
	if err := repo.Set(ctx, "schema_version", "2"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	value, _, _ = repo.Get(ctx, "schema_version")
	if value != "2" {
		t.Errorf("value after upsert = %q, want 2", value)
	}
}
