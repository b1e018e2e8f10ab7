package handlers

import (
	"net/http"

	"github.com/self-labs/hass-stack/common/httputil"
	"github.com/self-labs/hass-stack/coordinator/internal/service"
)

// Handler exposes the coordinator's status API.
type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// HandleAgents returns the live agent registry.
func (h *Handler) HandleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	agents, err := h.service.Agents(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "registry query failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, agents)
}

// HandleRegime returns the current market regime and its inputs.
func (h *Handler) HandleRegime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Regime())
}

// HandleQueues returns the dispatcher backlog per priority lane.
func (h *Handler) HandleQueues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.LaneDepths())
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
