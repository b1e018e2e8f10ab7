package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/self-labs/hass-stack/common/logging"
	"github.com/self-labs/hass-stack/common/messaging"
	"github.com/self-labs/hass-stack/marketdata/internal/auth"
	"github.com/self-labs/hass-stack/marketdata/internal/history"
	"github.com/self-labs/hass-stack/marketdata/internal/ratelimit"
	"github.com/self-labs/hass-stack/marketdata/internal/service"
)

func newTestHandler(t *testing.T) (*Handler, string) {
	t.Helper()
	tokens := auth.NewTokenGenerator("test-secret")
	token, err := tokens.GenerateAccessToken("feed-1", []string{"ticks:write"})
	require.NoError(t, err)

	svc := service.New(history.NewStore(100), nopPublisher{}, time.Minute, logging.New(slog.LevelError, "text"))
	return NewHandler(svc, tokens, nil, &ratelimit.NoOpRateLimiter{}), token
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, subject string, data []byte) error { return nil }

func (nopPublisher) PublishMsg(ctx context.Context, msg *messaging.Message) error { return nil }

func (nopPublisher) Request(ctx context.Context, subject string, data []byte, timeout time.Duration) (*messaging.Message, error) {
	return nil, nil
}

func (nopPublisher) Close() error { return nil }

func TestHandleTicks_Unauthorized(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticks", strings.NewReader("[]"))
	rec := httptest.NewRecorder()
	h.HandleTicks(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleTicks_AcceptsBatch(t *testing.T) {
	h, token := newTestHandler(t)

	body := `[{"symbol":"AAPL","price":100.5,"size":10,"timestamp":"2026-01-05T10:00:00Z"},
	          {"symbol":"AAPL","price":0,"size":10,"timestamp":"2026-01-05T10:00:01Z"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticks", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.HandleTicks(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accepted":1,"rejected":1}`, rec.Body.String())
}

func TestHandleTicks_StaticFeedToken(t *testing.T) {
	raw, err := auth.GenerateFeedToken()
	require.NoError(t, err)
	hash, err := auth.HashFeedToken(raw)
	require.NoError(t, err)

	svc := service.New(history.NewStore(100), nopPublisher{}, time.Minute, logging.New(slog.LevelError, "text"))
	h := NewHandler(svc, auth.NewTokenGenerator("test-secret"), []string{hash}, &ratelimit.NoOpRateLimiter{})

	body := `[{"symbol":"AAPL","price":100.5,"size":10,"timestamp":"2026-01-05T10:00:00Z"}]`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticks", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	h.HandleTicks(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A token that matches no hash is still rejected.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/ticks", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer not-the-token")
	rec = httptest.NewRecorder()
	h.HandleTicks(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleTicks_EmptyBatch(t *testing.T) {
	h, token := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ticks", strings.NewReader("[]"))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.HandleTicks(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleBars_RequiresSymbol(t *testing.T) {
	h, token := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bars", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.HandleBars(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIndicators_ReturnsSnapshot(t *testing.T) {
	h, token := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/indicators?symbol=AAPL", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.HandleIndicators(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"symbol":"AAPL"`)
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
