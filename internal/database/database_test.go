package database

import (
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "state", "client.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKV_RoundTrip(t *testing.T) {
	db := setupTestDB(t)

	if _, ok, err := db.GetValue("missing"); err != nil || ok {
		t.Fatalf("Expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := db.PutValue("habitcashback:accessToken", "tok-1"); err != nil {
		t.Fatalf("PutValue failed: %v", err)
	}
	if err := db.PutValue("habitcashback:accessToken", "tok-2"); err != nil {
		t.Fatalf("PutValue overwrite failed: %v", err)
	}

	v, ok, err := db.GetValue("habitcashback:accessToken")
	if err != nil || !ok {
		t.Fatalf("Expected stored key, got ok=%v err=%v", ok, err)
	}
	if v != "tok-2" {
		t.Errorf("Expected tok-2, got %s", v)
	}

	if err := db.DeleteValue("habitcashback:accessToken"); err != nil {
		t.Fatalf("DeleteValue failed: %v", err)
	}
	if _, ok, _ := db.GetValue("habitcashback:accessToken"); ok {
		t.Error("Expected key to be deleted")
	}

	if err := db.DeleteValue("habitcashback:accessToken"); err != nil {
		t.Errorf("Deleting absent key should not fail: %v", err)
	}
}

func TestKV_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")

	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("Failed to open: %v", err)
	}
	if err := db.PutValue("k", "v"); err != nil {
		t.Fatalf("PutValue failed: %v", err)
	}
	db.Close()

	db, err = NewDB(path)
	if err != nil {
		t.Fatalf("Failed to reopen: %v", err)
	}
	defer db.Close()

	if v, ok, _ := db.GetValue("k"); !ok || v != "v" {
		t.Errorf("Expected persisted value v, got %q ok=%v", v, ok)
	}
}
