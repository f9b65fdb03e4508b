// Package feed serves the current post list: cache first, then the upstream,
// then the durable snapshot when the upstream is unavailable.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/illmade-knight/go-postcache/pkg/cache"
	"github.com/illmade-knight/go-postcache/pkg/snapshot"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/illmade-knight/go-postcache/pkg/upstream"
	"github.com/rs/zerolog"
)

// Source is the upstream dependency of the service.
type Source interface {
	Fetch(ctx context.Context) (*upstream.Outcome, error)
	Probe(ctx context.Context) upstream.ProbeReport
}

// Config holds the caching policy.
type Config struct {
	CacheKey string
	// TTL applies after the primary query succeeded.
	TTL time.Duration
	// FallbackTTL applies after only a fallback query succeeded. It is shorter
	// so the primary query is retried sooner.
	FallbackTTL time.Duration
	// MaxStaleAge bounds how old a snapshot may be and still be served. Zero
	// selects the default; a negative value never serves the snapshot.
	MaxStaleAge          time.Duration
	SnapshotWriteTimeout time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the policy used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		CacheKey:             "posts:recent",
		TTL:                  10 * time.Minute,
		FallbackTTL:          2 * time.Minute,
		MaxStaleAge:          24 * time.Hour,
		SnapshotWriteTimeout: 5 * time.Second,
		Now:                  time.Now,
	}
}

// Service produces types.Result for the rendering layer. Concurrent misses
// may each call the upstream; there is no request coalescing.
type Service struct {
	cfg    Config
	source Source
	cache  cache.Cache[string, []types.Item]
	store  snapshot.Store
	logger zerolog.Logger
}

// NewService wires the service. store may be nil, which disables the snapshot.
func NewService(
	cfg *Config,
	source Source,
	itemCache cache.Cache[string, []types.Item],
	store snapshot.Store,
	logger zerolog.Logger,
) (*Service, error) {
	if source == nil || itemCache == nil {
		return nil, errors.New("source and cache cannot be nil")
	}
	c := DefaultConfig()
	if cfg != nil {
		if cfg.CacheKey != "" {
			c.CacheKey = cfg.CacheKey
		}
		if cfg.TTL > 0 {
			c.TTL = cfg.TTL
		}
		if cfg.FallbackTTL > 0 {
			c.FallbackTTL = cfg.FallbackTTL
		}
		if cfg.MaxStaleAge != 0 {
			c.MaxStaleAge = cfg.MaxStaleAge
		}
		if cfg.SnapshotWriteTimeout > 0 {
			c.SnapshotWriteTimeout = cfg.SnapshotWriteTimeout
		}
		if cfg.Now != nil {
			c.Now = cfg.Now
		}
	}
	return &Service{
		cfg:    c,
		source: source,
		cache:  itemCache,
		store:  store,
		logger: logger.With().Str("component", "FeedService").Logger(),
	}, nil
}

// Items returns the current posts. It never fails: every path yields a
// renderable Result.
func (s *Service) Items(ctx context.Context) types.Result {
	// 1. Try the cache.
	items, err := s.cache.Fetch(ctx, s.cfg.CacheKey)
	if err == nil {
		s.logger.Debug().Msg("Cache hit.")
		return liveResult(items, nil)
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Error().Err(err).Msg("Cache read failed, treating as a miss.")
	}

	// 2. Miss, go to the upstream.
	out, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Upstream fetch failed.")
		return s.fromSnapshot(ctx, out, err)
	}
	if out.Mode == types.ModeDemo {
		return types.Result{Items: out.Items, Mode: types.ModeDemo}
	}

	// 3. Write through to the cache and the snapshot.
	ttl := s.cfg.TTL
	if out.Fallback {
		ttl = s.cfg.FallbackTTL
	}
	if err := s.cache.Set(ctx, s.cfg.CacheKey, out.Items, ttl); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write items to cache.")
	}
	if err := s.writeSnapshot(ctx, out.Items); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write snapshot, continuing.")
	}

	return liveResult(out.Items, out)
}

// writeSnapshot is best effort; the caller decides whether to log the error.
func (s *Service) writeSnapshot(ctx context.Context, items []types.Item) error {
	if s.store == nil {
		return nil
	}
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.SnapshotWriteTimeout)
	defer cancel()
	return s.store.Write(writeCtx, items)
}

// fromSnapshot builds the failure Result, substituting snapshot items when a
// young enough snapshot exists.
func (s *Service) fromSnapshot(ctx context.Context, out *upstream.Outcome, fetchErr error) types.Result {
	res := types.Result{
		Items: []types.Item{},
		Mode:  types.ModeLive,
		Error: fetchErr.Error(),
		Debug: &types.Debug{},
	}
	if out != nil {
		res.Debug.Attempts = out.Attempts
	}
	if s.store == nil || s.cfg.MaxStaleAge < 0 {
		return res
	}

	// Age comes from the record that is served, not a second read.
	snap, err := s.store.Read(ctx)
	if err != nil {
		return res
	}
	age := snap.AgeAt(s.cfg.Now())
	if age > s.cfg.MaxStaleAge {
		s.logger.Info().Dur("age", age).Msg("Snapshot too old to serve.")
		return res
	}

	s.logger.Info().Dur("age", age).Int("items", len(snap.Items)).Msg("Serving stale snapshot.")
	res.Items = snap.Items
	res.Stale = true
	res.Debug.SnapshotAge = age.Round(time.Second).String()
	res.Debug.ItemCount = len(snap.Items)
	res.Debug.MediaCount, res.Debug.ItemsWithMedia = types.CountMedia(snap.Items)
	return res
}

// Probe runs the upstream diagnostic query.
func (s *Service) Probe(ctx context.Context) upstream.ProbeReport {
	return s.source.Probe(ctx)
}

// ClearCache drops all cached items. The snapshot is left untouched.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

func liveResult(items []types.Item, out *upstream.Outcome) types.Result {
	if items == nil {
		items = []types.Item{}
	}
	d := &types.Debug{ItemCount: len(items)}
	d.MediaCount, d.ItemsWithMedia = types.CountMedia(items)
	if out != nil {
		d.UsedFallbackQuery = out.Fallback
		d.Attempts = out.Attempts
	}
	return types.Result{Items: items, Mode: types.ModeLive, Debug: d}
}
