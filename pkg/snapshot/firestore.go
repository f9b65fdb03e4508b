package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreRecord is the document shape. Payload holds the same JSON the other
// backends write so every store reads every other store's format.
type FirestoreRecord struct {
	Payload   string    `firestore:"payload"`
	WrittenAt time.Time `firestore:"writtenAt"`
}

// FirestoreDocument is the one document the snapshot lives in.
type FirestoreDocument interface {
	Get(ctx context.Context) (FirestoreRecord, error)
	Set(ctx context.Context, rec FirestoreRecord) error
}

// FirestoreClient resolves a document by collection and id.
type FirestoreClient interface {
	Doc(collection, id string) FirestoreDocument
}

type firestoreClientAdapter struct {
	client *firestore.Client
}

func (a *firestoreClientAdapter) Doc(collection, id string) FirestoreDocument {
	return &firestoreDocumentAdapter{ref: a.client.Collection(collection).Doc(id)}
}

type firestoreDocumentAdapter struct {
	ref *firestore.DocumentRef
}

func (a *firestoreDocumentAdapter) Get(ctx context.Context) (FirestoreRecord, error) {
	var rec FirestoreRecord
	docSnap, err := a.ref.Get(ctx)
	if err != nil {
		return rec, err
	}
	if err := docSnap.DataTo(&rec); err != nil {
		return rec, fmt.Errorf("firestore DataTo: %w", err)
	}
	return rec, nil
}

func (a *firestoreDocumentAdapter) Set(ctx context.Context, rec FirestoreRecord) error {
	_, err := a.ref.Set(ctx, rec)
	return err
}

// NewFirestoreClientAdapter wraps a *firestore.Client. Its lifecycle stays with
// the caller.
func NewFirestoreClientAdapter(client *firestore.Client) FirestoreClient {
	if client == nil {
		return nil
	}
	return &firestoreClientAdapter{client: client}
}

// FirestoreStoreConfig holds configuration for the Firestore snapshot store.
type FirestoreStoreConfig struct {
	CollectionName string
	DocumentID     string
}

// FirestoreStore keeps the snapshot as a single Firestore document.
type FirestoreStore struct {
	client FirestoreClient
	config FirestoreStoreConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewFirestoreStore creates a snapshot store backed by Firestore.
func NewFirestoreStore(client FirestoreClient, config FirestoreStoreConfig, now func() time.Time, logger zerolog.Logger) (*FirestoreStore, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	if config.CollectionName == "" {
		config.CollectionName = "postcache"
	}
	if config.DocumentID == "" {
		config.DocumentID = "posts-snapshot"
	}
	if now == nil {
		now = time.Now
	}
	return &FirestoreStore{
		client: client,
		config: config,
		logger: logger.With().Str("component", "FirestoreSnapshot").Str("collection", config.CollectionName).Logger(),
		now:    now,
	}, nil
}

func (f *FirestoreStore) doc() FirestoreDocument {
	return f.client.Doc(f.config.CollectionName, f.config.DocumentID)
}

// Read fetches and decodes the snapshot document.
func (f *FirestoreStore) Read(ctx context.Context) (*Snapshot, error) {
	rec, err := f.doc().Get(ctx)
	if err != nil {
		if status.Code(err) != codes.NotFound {
			f.logger.Warn().Err(err).Str("doc", f.config.DocumentID).Msg("Failed to get snapshot document.")
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	s, err := decode([]byte(rec.Payload))
	if err != nil {
		f.logger.Warn().Err(err).Str("doc", f.config.DocumentID).Msg("Snapshot document is not valid.")
		return nil, err
	}
	return s, nil
}

// Write replaces the snapshot document.
func (f *FirestoreStore) Write(ctx context.Context, items []types.Item) error {
	writtenAt := f.now()
	data, err := encode(items, writtenAt)
	if err != nil {
		return err
	}
	if err := f.doc().Set(ctx, FirestoreRecord{Payload: string(data), WrittenAt: writtenAt}); err != nil {
		return fmt.Errorf("firestore set for %s: %w", f.config.DocumentID, err)
	}
	f.logger.Debug().Int("items", len(items)).Str("doc", f.config.DocumentID).Msg("Snapshot document written.")
	return nil
}

// Age returns how long ago the snapshot was written, or Infinite.
func (f *FirestoreStore) Age(ctx context.Context) time.Duration {
	s, err := f.Read(ctx)
	if err != nil {
		return Infinite
	}
	return age(s, f.now())
}
