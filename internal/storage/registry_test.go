package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, window time.Duration) *FileRegistry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	return NewFileRegistry(path, window, 2*time.Second, nil)
}

func TestFileRegistry_TrackUntrack(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, time.Hour)
	now := time.Now().UTC()

	require.NoError(t, reg.Track(ctx, "tmp/a.pdf", now))

	expired, err := reg.ListExpired(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired, "fresh entries are not expired")

	expired, err = reg.ListExpired(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"tmp/a.pdf"}, expired)

	ok, err := reg.IsExpired(ctx, "tmp/a.pdf", now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, ok)

	present, err := reg.Untrack(ctx, "tmp/a.pdf")
	require.NoError(t, err)
	assert.True(t, present)

	present, err = reg.Untrack(ctx, "tmp/a.pdf")
	require.NoError(t, err)
	assert.False(t, present, "second untrack finds nothing")

	// The staged temp document never survives a store.
	_, err = os.Stat(reg.path + ".tmp")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileRegistry_UntrackedPathIsNotExpired(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, time.Hour)

	ok, err := reg.IsExpired(ctx, "tmp/never-seen.pdf", time.Now().Add(1000*time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileRegistry_CorruptDocumentFailsOpen(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, time.Hour)
	require.NoError(t, os.WriteFile(reg.path, []byte("{not json"), 0o644))

	expired, err := reg.ListExpired(ctx, time.Now())
	require.NoError(t, err, "reads treat a corrupt document as empty")
	assert.Empty(t, expired)

	// The next write replaces the corrupt document with a valid one.
	require.NoError(t, reg.Track(ctx, "tmp/b.pdf", time.Now().UTC()))

	data, err := os.ReadFile(reg.path)
	require.NoError(t, err)
	var doc map[string]RegistryEntry
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc, 1)
	assert.Contains(t, doc, "tmp/b.pdf")
}

func TestFileRegistry_ConcurrentTracksStayConsistent(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, time.Hour)
	now := time.Now().UTC()

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = reg.Track(ctx, filepath.Join("tmp", string(rune('a'+i))+".pdf"), now)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}

	data, err := os.ReadFile(reg.path)
	require.NoError(t, err)
	var doc map[string]RegistryEntry
	require.NoError(t, json.Unmarshal(data, &doc), "document must stay valid JSON under contention")
	assert.Len(t, doc, n, "no write may clobber another")
}

func TestFileRegistry_LockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	reg := NewFileRegistry(path, time.Hour, 150*time.Millisecond, nil)

	holder := flock.New(reg.LockPath())
	require.NoError(t, holder.Lock())
	defer func() { _ = holder.Unlock() }()

	err := reg.Track(context.Background(), "tmp/x.pdf", time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLockTimeout)
}
