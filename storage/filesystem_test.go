package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/johnwmail/pastelite/models"
)

func TestNewFilesystemStore_CreatesDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	store, err := NewFilesystemStore(dir)
	if err != nil {
		t.Fatalf("NewFilesystemStore failed: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("data dir not created: %v", err)
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewFilesystemStore_EmptyDir(t *testing.T) {
	if _, err := NewFilesystemStore(""); err == nil {
		t.Error("expected error for empty data dir")
	}
}

func TestFilesystemStore_StoreGet(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	maxViews := 2
	paste := &models.Paste{ID: "fs1", Content: "hello", MaxViews: &maxViews, CreatedAt: time.Now().UTC()}

	if err := store.Store(ctx, paste); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := store.Store(ctx, &models.Paste{ID: "fs1", Content: "second"}); err != ErrDuplicateID {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	got, err := store.Get(ctx, "fs1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != "hello" || got.ViewCount != 0 || *got.MaxViews != 2 {
		t.Errorf("unexpected paste: %+v", got)
	}

	// Get has no side effects
	again, _ := store.Get(ctx, "fs1")
	if again.ViewCount != 0 {
		t.Errorf("Get changed view count to %d", again.ViewCount)
	}

	missing, err := store.Get(ctx, "missing")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing paste, got (%v, %v)", missing, err)
	}
}

func TestFilesystemStore_IncrementViewAndFetch(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFilesystemStore(dir)
	ctx := context.Background()

	if err := store.Store(ctx, &models.Paste{ID: "fs2", Content: "x"}); err != nil {
		t.Fatal(err)
	}
	for want := 1; want <= 3; want++ {
		got, err := store.IncrementViewAndFetch(ctx, "fs2")
		if err != nil {
			t.Fatalf("increment failed: %v", err)
		}
		if got.ViewCount != want {
			t.Errorf("expected view count %d, got %d", want, got.ViewCount)
		}
	}

	ghost, err := store.IncrementViewAndFetch(ctx, "ghost")
	if err != nil || ghost != nil {
		t.Errorf("expected (nil, nil) for missing paste, got (%v, %v)", ghost, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "ghost.json")); !os.IsNotExist(err) {
		t.Error("increment must not create a record")
	}
}

func TestFilesystemStore_ConcurrentIncrements(t *testing.T) {
	store, _ := NewFilesystemStore(t.TempDir())
	ctx := context.Background()
	if err := store.Store(ctx, &models.Paste{ID: "fs3", Content: "x"}); err != nil {
		t.Fatal(err)
	}

	const workers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[int]bool)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := store.IncrementViewAndFetch(ctx, "fs3")
			if err != nil {
				t.Errorf("increment failed: %v", err)
				return
			}
			mu.Lock()
			seen[p.ViewCount] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != workers {
		t.Errorf("expected %d distinct view numbers, got %d", workers, len(seen))
	}
	final, _ := store.Get(ctx, "fs3")
	if final.ViewCount != workers {
		t.Errorf("expected final view count %d, got %d", workers, final.ViewCount)
	}
}

func TestFilesystemStore_DeleteExpired(t *testing.T) {
	store, _ := NewFilesystemStore(t.TempDir())
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	at := now
	later := now.Add(time.Second)

	_ = store.Store(ctx, &models.Paste{ID: "boundary", Content: "a", ExpiresAt: &at})
	_ = store.Store(ctx, &models.Paste{ID: "live", Content: "b", ExpiresAt: &later})
	_ = store.Store(ctx, &models.Paste{ID: "forever", Content: "c"})

	removed, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}
	if p, _ := store.Get(ctx, "boundary"); p != nil {
		t.Error("paste expiring exactly at now should be removed")
	}
	if p, _ := store.Get(ctx, "live"); p == nil {
		t.Error("live paste removed")
	}

	if err := store.Delete(ctx, "live"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "live"); err != nil {
		t.Errorf("deleting a missing paste should not fail: %v", err)
	}
}
