package handlers

import (
	"net/http"

	"github.com/self-labs/hass-stack/common/httputil"
	"github.com/self-labs/hass-stack/options/internal/models"
	"github.com/self-labs/hass-stack/options/internal/service"
)

// Handler accepts chain snapshots from feeds.
type Handler struct {
	service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// HandleChain accepts a JSON array of quotes for one underlying and
// responds with the signals the snapshot triggered.
func (h *Handler) HandleChain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var quotes []models.Quote
	if err := httputil.DecodeJSON(r, &quotes); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid chain snapshot")
		return
	}
	if len(quotes) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "empty chain snapshot")
		return
	}

	symbol := quotes[0].Symbol
	for _, q := range quotes {
		if q.Symbol != symbol {
			httputil.WriteError(w, http.StatusBadRequest, "snapshot mixes underlyings")
			return
		}
	}

	signals, err := h.service.ProcessChain(r.Context(), quotes)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "chain processing failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":  symbol,
		"signals": signals,
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
