package handlers

import (
	"net/http"

	"github.com/self-labs/hass-stack/common/httputil"
	"github.com/self-labs/hass-stack/media/internal/credibility"
	"github.com/self-labs/hass-stack/media/internal/metrics"
	"github.com/self-labs/hass-stack/media/internal/models"
	"github.com/self-labs/hass-stack/media/internal/service"
)

// Handler accepts news batches and credibility feedback.
type Handler struct {
	service     *service.Service
	credibility credibility.Tracker
}

func NewHandler(svc *service.Service, cred credibility.Tracker) *Handler {
	return &Handler{service: svc, credibility: cred}
}

// HandleNews accepts a JSON array of news items and responds with the
// sentiment signals the batch produced.
func (h *Handler) HandleNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var items []models.NewsItem
	if err := httputil.DecodeJSON(r, &items); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid news batch")
		return
	}
	if len(items) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "empty news batch")
		return
	}

	signals, err := h.service.ProcessBatch(r.Context(), items)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "batch processing failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"processed": len(items),
		"signals":   signals,
	})
}

type feedbackRequest struct {
	Source   string  `json:"source"`
	Accuracy float64 `json:"accuracy"`
}

// HandleFeedback records how accurate a source's coverage turned out,
// shifting its credibility weight.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req feedbackRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid feedback")
		return
	}
	if req.Source == "" {
		httputil.WriteError(w, http.StatusBadRequest, "source is required")
		return
	}

	score, err := h.credibility.RecordAccuracy(r.Context(), req.Source, req.Accuracy)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.CredibilityUpdates.Inc()

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"source":      req.Source,
		"credibility": score,
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
