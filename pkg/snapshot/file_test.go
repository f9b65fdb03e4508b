package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-postcache/pkg/snapshot"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC)

func sampleItems() []types.Item {
	return []types.Item{
		{
			ID:        "1801",
			Text:      "Victory!",
			CreatedAt: testNow.Add(-time.Hour),
			Author:    "@BeatHammer",
			Media: []types.MediaAttachment{
				{MediaKey: "3_1", Type: types.MediaPhoto, URL: "https://pbs.example/1.jpg", Width: 1200, Height: 800},
				{MediaKey: "7_2", Type: types.MediaVideo, PreviewImageURL: "https://pbs.example/2.jpg"},
			},
		},
		{ID: "1802", Text: "No media here", CreatedAt: testNow.Add(-2 * time.Hour), Author: "@BeatHammer"},
	}
}

func TestFileStore_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tweets-cache.json")
	store, err := snapshot.NewFileStore(path, func() time.Time { return testNow }, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, sampleItems()))
	got, err := store.Read(ctx)

	require.NoError(t, err)
	assert.Equal(t, sampleItems(), got.Items)
	assert.True(t, testNow.Equal(got.WrittenAt))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files should not be left behind")
}

func TestFileStore_OverwritesWholesale(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json")
	store, err := snapshot.NewFileStore(path, nil, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, sampleItems()))
	require.NoError(t, store.Write(ctx, sampleItems()[1:]))

	got, err := store.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "1802", got.Items[0].ID)
}

func TestFileStore_ReadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing file", func(t *testing.T) {
		store, err := snapshot.NewFileStore(filepath.Join(t.TempDir(), "absent.json"), nil, zerolog.Nop())
		require.NoError(t, err)

		got, err := store.Read(ctx)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
	})

	t.Run("Corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{\"items\": [oops"), 0o644))
		store, err := snapshot.NewFileStore(path, nil, zerolog.Nop())
		require.NoError(t, err)

		got, err := store.Read(ctx)

		assert.Nil(t, got)
		assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
		assert.Equal(t, snapshot.Infinite, store.Age(ctx))
	})
}

func TestFileStore_Age(t *testing.T) {
	ctx := context.Background()
	now := testNow
	clock := func() time.Time { return now }
	store, err := snapshot.NewFileStore(filepath.Join(t.TempDir(), "snap.json"), clock, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, snapshot.Infinite, store.Age(ctx), "no snapshot should report Infinite")

	require.NoError(t, store.Write(ctx, sampleItems()))
	now = now.Add(90 * time.Minute)

	assert.Equal(t, 90*time.Minute, store.Age(ctx))
}

func TestFileStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snap.json")
	store, err := snapshot.NewFileStore(path, nil, zerolog.Nop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Write(ctx, sampleItems())
		}()
		go func() {
			defer wg.Done()
			if s, err := store.Read(ctx); err == nil {
				assert.Len(t, s.Items, 2, "a reader should never see a partial document")
			}
		}()
	}
	wg.Wait()

	got, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), got.Items)
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	_, err := snapshot.NewFileStore("", nil, zerolog.Nop())
	require.Error(t, err)
}
