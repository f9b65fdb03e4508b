package microservice_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/illmade-knight/go-postcache/pkg/microservice"
	"github.com/illmade-knight/go-postcache/pkg/types"
	"github.com/illmade-knight/go-postcache/pkg/upstream"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockItemsService is a test double for microservice.ItemsService.
type mockItemsService struct {
	result   types.Result
	clearErr error
	cleared  int
}

func (m *mockItemsService) Items(context.Context) types.Result { return m.result }
func (m *mockItemsService) Probe(context.Context) upstream.ProbeReport {
	return upstream.ProbeReport{Auth: upstream.AuthBearer, OK: true, Status: 200, RecordCount: 2}
}
func (m *mockItemsService) ClearCache(context.Context) error {
	m.cleared++
	return m.clearErr
}

func serve(s *microservice.FeedServer, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	s.Engine().ServeHTTP(rec, req)
	return rec
}

func TestFeedServer_Items(t *testing.T) {
	t.Run("Live items", func(t *testing.T) {
		svc := &mockItemsService{result: types.Result{
			Items: []types.Item{{ID: "1801", Text: "Victory!", Author: "@BeatHammer", CreatedAt: time.Date(2025, 6, 13, 10, 0, 0, 0, time.UTC)}},
			Mode:  types.ModeLive,
		}}
		s := microservice.NewFeedServer(&microservice.FeedServerConfig{HTTPPort: ":0"}, svc, zerolog.Nop())

		rec := serve(s, http.MethodGet, "/api/items")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(microservice.RequestIDHeader))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "live", body["mode"])
		assert.NotContains(t, body, "error")
		items := body["items"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "1801", items[0].(map[string]any)["id"])
		assert.Equal(t, "2025-06-13T10:00:00Z", items[0].(map[string]any)["created_at"])
	})

	t.Run("Failure still answers 200 with an empty array", func(t *testing.T) {
		svc := &mockItemsService{result: types.Result{Mode: types.ModeLive, Error: "no posts found"}}
		s := microservice.NewFeedServer(&microservice.FeedServerConfig{}, svc, zerolog.Nop())

		rec := serve(s, http.MethodGet, "/api/items")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"items": [], "mode": "live", "error": "no posts found"}`, rec.Body.String())
	})
}

func TestFeedServer_DebugRoutes(t *testing.T) {
	svc := &mockItemsService{}

	disabled := microservice.NewFeedServer(&microservice.FeedServerConfig{}, svc, zerolog.Nop())
	assert.Equal(t, http.StatusNotFound, serve(disabled, http.MethodGet, "/debug/upstream").Code)

	enabled := microservice.NewFeedServer(&microservice.FeedServerConfig{DebugRoutes: true}, svc, zerolog.Nop())
	rec := serve(enabled, http.MethodGet, "/debug/upstream")
	require.Equal(t, http.StatusOK, rec.Code)
	var report upstream.ProbeReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.OK)
	assert.Equal(t, 2, report.RecordCount)
}

func TestFeedServer_ClearCache(t *testing.T) {
	svc := &mockItemsService{}
	s := microservice.NewFeedServer(&microservice.FeedServerConfig{}, svc, zerolog.Nop())

	assert.Equal(t, http.StatusNoContent, serve(s, http.MethodPost, "/admin/cache/clear").Code)
	assert.Equal(t, 1, svc.cleared)

	svc.clearErr = errors.New("redis down")
	assert.Equal(t, http.StatusInternalServerError, serve(s, http.MethodPost, "/admin/cache/clear").Code)
}

func TestBaseServer_Lifecycle(t *testing.T) {
	s := microservice.NewBaseServer(zerolog.Nop(), "127.0.0.1:0")
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://127.0.0.1%s/healthz", s.GetHTTPPort()), nil)
	require.NoError(t, err)
	req.Header.Set(microservice.RequestIDHeader, "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.Equal(t, "req-123", resp.Header.Get(microservice.RequestIDHeader))
}
