package handlers

import (
	"net/http"
	"strconv"

	"github.com/self-labs/hass-stack/common/httputil"
	"github.com/self-labs/hass-stack/monitor/internal/service"
)

// Handler exposes the monitor's status API.
type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// HandleAlerts returns the active alert set, or the alert history when
// history=true is passed.
func (h *Handler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if r.URL.Query().Get("history") == "true" {
		limit := 100
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				httputil.WriteError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}
		httputil.WriteJSON(w, http.StatusOK, h.service.AlertHistory(limit))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.ActiveAlerts())
}

// HandleAgents returns the observed per-agent traffic stats.
func (h *Handler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.AgentStats())
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
