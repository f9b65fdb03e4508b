package snapshot_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/go-postcache/pkg/snapshot"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// --- Mock Firestore Client Components ---

type mockFirestoreClient struct {
	mu      sync.Mutex
	docs    map[string]snapshot.FirestoreRecord
	failGet error
	failSet bool
}

func newMockFirestoreClient() *mockFirestoreClient {
	return &mockFirestoreClient{docs: make(map[string]snapshot.FirestoreRecord)}
}

func (m *mockFirestoreClient) Doc(collection, id string) snapshot.FirestoreDocument {
	return &mockFirestoreDoc{client: m, path: collection + "/" + id}
}

type mockFirestoreDoc struct {
	client *mockFirestoreClient
	path   string
}

func (d *mockFirestoreDoc) Get(_ context.Context) (snapshot.FirestoreRecord, error) {
	d.client.mu.Lock()
	defer d.client.mu.Unlock()
	if d.client.failGet != nil {
		return snapshot.FirestoreRecord{}, d.client.failGet
	}
	rec, ok := d.client.docs[d.path]
	if !ok {
		return snapshot.FirestoreRecord{}, status.Error(codes.NotFound, "document not found")
	}
	return rec, nil
}

func (d *mockFirestoreDoc) Set(_ context.Context, rec snapshot.FirestoreRecord) error {
	d.client.mu.Lock()
	defer d.client.mu.Unlock()
	if d.client.failSet {
		return status.Error(codes.Unavailable, "simulated outage")
	}
	d.client.docs[d.path] = rec
	return nil
}

func TestFirestoreStore_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	client := newMockFirestoreClient()
	store, err := snapshot.NewFirestoreStore(client, snapshot.FirestoreStoreConfig{CollectionName: "snapshots"}, func() time.Time { return testNow }, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, snapshot.Infinite, store.Age(ctx))

	require.NoError(t, store.Write(ctx, sampleItems()))
	got, err := store.Read(ctx)

	require.NoError(t, err)
	assert.Equal(t, sampleItems(), got.Items)
	assert.True(t, testNow.Equal(got.WrittenAt))
	assert.Equal(t, time.Duration(0), store.Age(ctx))
	require.Contains(t, client.docs, "snapshots/posts-snapshot")
	assert.True(t, testNow.Equal(client.docs["snapshots/posts-snapshot"].WrittenAt))
}

func TestFirestoreStore_ReadMissingDocument(t *testing.T) {
	store, err := snapshot.NewFirestoreStore(newMockFirestoreClient(), snapshot.FirestoreStoreConfig{}, nil, zerolog.Nop())
	require.NoError(t, err)

	_, err = store.Read(context.Background())

	assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
}

func TestFirestoreStore_ReadErrors(t *testing.T) {
	testCases := []struct {
		name  string
		setup func(c *mockFirestoreClient)
	}{
		{
			name:  "backend unavailable",
			setup: func(c *mockFirestoreClient) { c.failGet = errors.New("connection reset") },
		},
		{
			name: "corrupt payload",
			setup: func(c *mockFirestoreClient) {
				c.docs["postcache/posts-snapshot"] = snapshot.FirestoreRecord{Payload: "{not json", WrittenAt: testNow}
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newMockFirestoreClient()
			tc.setup(client)
			store, err := snapshot.NewFirestoreStore(client, snapshot.FirestoreStoreConfig{}, nil, zerolog.Nop())
			require.NoError(t, err)

			_, err = store.Read(context.Background())

			assert.ErrorIs(t, err, snapshot.ErrNoSnapshot)
			assert.Equal(t, snapshot.Infinite, store.Age(context.Background()))
		})
	}
}

func TestFirestoreStore_WriteFailure(t *testing.T) {
	client := newMockFirestoreClient()
	client.failSet = true
	store, err := snapshot.NewFirestoreStore(client, snapshot.FirestoreStoreConfig{}, nil, zerolog.Nop())
	require.NoError(t, err)

	err = store.Write(context.Background(), sampleItems())

	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(errors.Unwrap(err)))
	assert.Empty(t, client.docs)
}

func TestNewFirestoreStore_NilClient(t *testing.T) {
	_, err := snapshot.NewFirestoreStore(nil, snapshot.FirestoreStoreConfig{}, nil, zerolog.Nop())
	require.Error(t, err)
}
