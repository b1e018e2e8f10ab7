package handlers

import (
	"net/http"
	"strings"

	"github.com/self-labs/hass-stack/common/httputil"
	"github.com/self-labs/hass-stack/marketdata/internal/auth"
	"github.com/self-labs/hass-stack/marketdata/internal/models"
	"github.com/self-labs/hass-stack/marketdata/internal/ratelimit"
	"github.com/self-labs/hass-stack/marketdata/internal/service"
)

// Handler exposes the market data HTTP API: tick ingestion for feeds
// and bar/indicator queries for downstream consumers.
type Handler struct {
	service    *service.Service
	tokens     *auth.TokenGenerator
	feedHashes []string
	limiter    ratelimit.RateLimiter
}

func NewHandler(svc *service.Service, tokens *auth.TokenGenerator, feedHashes []string, limiter ratelimit.RateLimiter) *Handler {
	return &Handler{
		service:    svc,
		tokens:     tokens,
		feedHashes: feedHashes,
		limiter:    limiter,
	}
}

// HandleTicks accepts a JSON array of ticks from an authenticated feed.
func (h *Handler) HandleTicks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	claims, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), claims.ClientID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "rate limit check failed")
		return
	}
	if !allowed {
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var ticks []models.Tick
	if err := httputil.DecodeJSON(r, &ticks); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid tick batch")
		return
	}
	if len(ticks) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "empty tick batch")
		return
	}

	accepted := 0
	for _, tick := range ticks {
		if err := h.service.IngestTick(r.Context(), tick); err != nil {
			continue
		}
		accepted++
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]int{
		"accepted": accepted,
		"rejected": len(ticks) - accepted,
	})
}

// HandleBars returns the stored bar history for a symbol.
func (h *Handler) HandleBars(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		httputil.WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	bars := h.service.Bars(symbol)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol": symbol,
		"bars":   bars,
		"count":  len(bars),
	})
}

// HandleIndicators returns the current indicator snapshot for a symbol.
func (h *Handler) HandleIndicators(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		httputil.WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, h.service.Indicators(symbol))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// authenticate validates the bearer token and writes the error
// response itself when validation fails. A bearer value is accepted
// either as a signed JWT or as a raw feed token matching one of the
// configured bcrypt hashes.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		httputil.WriteError(w, http.StatusUnauthorized, "missing bearer token")
		return nil, false
	}

	claims, err := h.tokens.ValidateAccessToken(token)
	if err == nil {
		return claims, true
	}

	for _, hash := range h.feedHashes {
		if auth.VerifyFeedToken(hash, token) == nil {
			return &auth.Claims{ClientID: "static-feed"}, true
		}
	}

	httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
	return nil, false
}
