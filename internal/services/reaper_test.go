package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/johnwmail/pastelite/models"
)

func TestReaper_SweepRemovesExpired(t *testing.T) {
	_, store, _ := newTestService(t)
	ctx := context.Background()
	past := t0.Add(-time.Second)
	future := t0.Add(time.Hour)

	require.NoError(t, store.Store(ctx, &models.Paste{ID: "expired001", Content: "a", ExpiresAt: &past}))
	require.NoError(t, store.Store(ctx, &models.Paste{ID: "current001", Content: "b", ExpiresAt: &future}))
	require.NoError(t, store.Store(ctx, &models.Paste{ID: "exhausted1", Content: "c", MaxViews: intPtr(1), ViewCount: 1}))

	reaper := NewReaper(store, time.Minute, quietLogger())
	reaper.now = func() time.Time { return t0 }

	removed, err := reaper.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	gone, err := store.Get(ctx, "expired001")
	require.NoError(t, err)
	require.Nil(t, gone)

	// view-exhausted pastes are left alone
	kept, err := store.Get(ctx, "exhausted1")
	require.NoError(t, err)
	require.NotNil(t, kept)
}

func TestReaper_NoopForNativeExpiry(t *testing.T) {
	reaper := NewReaper(&stubStore{}, time.Millisecond, quietLogger())

	removed, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	require.Zero(t, removed)

	done := make(chan struct{})
	go func() {
		reaper.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately for stores without Sweeper")
	}
}

func TestReaper_RunStopsOnCancel(t *testing.T) {
	_, store, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	past := time.Now().Add(-time.Minute)
	require.NoError(t, store.Store(ctx, &models.Paste{ID: "expired002", Content: "a", ExpiresAt: &past}))

	reaper := NewReaper(store, 5*time.Millisecond, quietLogger())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		p, err := store.Get(context.Background(), "expired002")
		return err == nil && p == nil
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
