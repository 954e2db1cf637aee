package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"policyguard/internal/infrastructure/persistence/sqlite/model"
)

func setupKVCache(t *testing.T) *KVCache {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "kv.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("auto migrate kv_store: %v", err)
	}

	return NewKVCache(db)
}

func TestKVCacheSetGetDelete(t *testing.T) {
	cache := setupKVCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "scan:last_status", "SUCCESS", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := cache.Get(ctx, "scan:last_status")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "SUCCESS" {
		t.Fatalf("Get() = %q, found=%v", value, found)
	}

	if err := cache.Set(ctx, "scan:last_status", "NO_VIOLATIONS", 0); err != nil {
		t.Fatalf("Set(update) error = %v", err)
	}

	value, found, err = cache.Get(ctx, "scan:last_status")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !found || value != "NO_VIOLATIONS" {
		t.Fatalf("Get() after update = %q, found=%v", value, found)
	}

	if err := cache.Delete(ctx, "scan:last_status"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, found, err = cache.Get(ctx, "scan:last_status")
	if err != nil {
		t.Fatalf("Get() after delete error = %v", err)
	}
	if found {
		t.Fatalf("Get() expected found=false after delete")
	}
}

func TestKVCacheHonorsTTL(t *testing.T) {
	cache := setupKVCache(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if err := cache.Set(ctx, "scheduler:next_cycle_at", "soon", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, found, err := cache.Get(ctx, "scheduler:next_cycle_at"); err != nil || !found {
		t.Fatalf("Get() before expiry found=%v err=%v", found, err)
	}

	now = now.Add(2 * time.Minute)
	if _, found, err := cache.Get(ctx, "scheduler:next_cycle_at"); err != nil || found {
		t.Fatalf("Get() after expiry found=%v err=%v", found, err)
	}

	if err := cache.Set(ctx, "scheduler:next_cycle_at", "later", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if value, found, err := cache.Get(ctx, "scheduler:next_cycle_at"); err != nil || !found || value != "later" {
		t.Fatalf("Get() after reset = %q found=%v err=%v", value, found, err)
	}
}

func TestKVCacheRejectsEmptyKey(t *testing.T) {
	cache := setupKVCache(t)
	ctx := context.Background()

	if err := cache.Set(ctx, "", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
	if _, _, err := cache.Get(ctx, " "); err == nil {
		t.Fatalf("Get() expected error for empty key")
	}
	if err := cache.Delete(ctx, ""); err == nil {
		t.Fatalf("Delete() expected error for empty key")
	}
}
