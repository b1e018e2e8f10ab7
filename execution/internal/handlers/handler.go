package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/self-labs/hass-stack/common/httputil"
	"github.com/self-labs/hass-stack/execution/internal/dlq"
	"github.com/self-labs/hass-stack/execution/internal/service"
)

// Handler exposes the execution agent's HTTP API.
type Handler struct {
	service *service.Service
	dlq     *dlq.Queue
}

func NewHandler(svc *service.Service, q *dlq.Queue) *Handler {
	return &Handler{service: svc, dlq: q}
}

// HandleStats returns the rolling execution quality statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Tracker().Stats())
}

// HandleFills returns recent fills from the archive.
func (h *Handler) HandleFills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			httputil.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	fills, err := h.service.Archive().RecentFills(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "archive query failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fills)
}

// HandleDLQ returns failed orders from the dead letter queue.
func (h *Handler) HandleDLQ(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.dlq == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}

	entries, err := h.dlq.List(r.Context(), 100)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "dlq query failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"stats":   h.dlq.Stats(context.Background()),
		"entries": entries,
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
