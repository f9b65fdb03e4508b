package microservice

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/illmade-knight/go-postcache/pkg/upstream"
	"github.com/rs/zerolog"
)

// ItemsService is what the HTTP layer needs from the feed.
type ItemsService interface {
	Items(ctx context.Context) types.Result
	Probe(ctx context.Context) upstream.ProbeReport
	ClearCache(ctx context.Context) error
}

// FeedServerConfig controls which routes are exposed.
type FeedServerConfig struct {
	HTTPPort    string
	DebugRoutes bool
}

// FeedServer exposes the current items to the rendering layer.
type FeedServer struct {
	*BaseServer
	svc    ItemsService
	logger zerolog.Logger
}

// NewFeedServer registers the feed routes on a new BaseServer.
func NewFeedServer(cfg *FeedServerConfig, svc ItemsService, logger zerolog.Logger) *FeedServer {
	s := &FeedServer{
		BaseServer: NewBaseServer(logger, cfg.HTTPPort),
		svc:        svc,
		logger:     logger.With().Str("component", "FeedServer").Logger(),
	}

	r := s.Engine()
	r.GET("/api/items", s.handleItems)
	r.POST("/admin/cache/clear", s.handleClearCache)
	if cfg.DebugRoutes {
		r.GET("/debug/upstream", s.handleProbe)
	}
	return s
}

// handleItems always answers 200 so the page can render whatever it gets.
func (s *FeedServer) handleItems(c *gin.Context) {
	res := s.svc.Items(c.Request.Context())
	if res.Items == nil {
		res.Items = []types.Item{}
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, res)
}

func (s *FeedServer) handleProbe(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Probe(c.Request.Context()))
}

func (s *FeedServer) handleClearCache(c *gin.Context) {
	if err := s.svc.ClearCache(c.Request.Context()); err != nil {
		s.logger.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Failed to clear cache.")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
		return
	}
	c.Status(http.StatusNoContent)
}
