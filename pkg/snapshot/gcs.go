package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/rs/zerolog"
)

// GCSStoreConfig holds configuration for the GCS snapshot store.
type GCSStoreConfig struct {
	BucketName string
	ObjectName string
}

// GCSStore keeps the snapshot as a single GCS object. A GCS object only
// becomes visible once its writer is closed, so replacement is atomic for
// readers.
type GCSStore struct {
	client GCSClient
	config GCSStoreConfig
	logger zerolog.Logger
	now    func() time.Time
}

// NewGCSStore creates a snapshot store backed by Google Cloud Storage.
func NewGCSStore(client GCSClient, config GCSStoreConfig, now func() time.Time, logger zerolog.Logger) (*GCSStore, error) {
	if client == nil {
		return nil, errors.New("GCS client cannot be nil")
	}
	if config.BucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	if config.ObjectName == "" {
		config.ObjectName = "posts-snapshot.json"
	}
	if now == nil {
		now = time.Now
	}
	return &GCSStore{
		client: client,
		config: config,
		logger: logger.With().Str("component", "GCSSnapshot").Str("bucket", config.BucketName).Logger(),
		now:    now,
	}, nil
}

func (g *GCSStore) object() GCSObjectHandle {
	return g.client.Bucket(g.config.BucketName).Object(g.config.ObjectName)
}

// Read downloads and decodes the snapshot object.
func (g *GCSStore) Read(ctx context.Context) (*Snapshot, error) {
	r, err := g.object().NewReader(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotExist) {
			g.logger.Warn().Err(err).Msg("Failed to open snapshot object.")
		}
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Failed to read snapshot object.")
		return nil, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	s, err := decode(data)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Snapshot object is not valid.")
		return nil, err
	}
	return s, nil
}

// Write uploads a new snapshot object, replacing the previous one.
func (g *GCSStore) Write(ctx context.Context, items []types.Item) error {
	data, err := encode(items, g.now())
	if err != nil {
		return err
	}
	w := g.object().NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write snapshot object %s: %w", g.config.ObjectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize snapshot object %s: %w", g.config.ObjectName, err)
	}
	g.logger.Debug().Int("items", len(items)).Str("object", g.config.ObjectName).Msg("Snapshot uploaded.")
	return nil
}

// Age returns how long ago the snapshot was written, or Infinite.
func (g *GCSStore) Age(ctx context.Context) time.Duration {
	s, err := g.Read(ctx)
	if err != nil {
		return Infinite
	}
	return age(s, g.now())
}
