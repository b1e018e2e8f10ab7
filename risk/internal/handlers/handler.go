package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/self-labs/hass-stack/common/httputil"
	"github.com/self-labs/hass-stack/risk/internal/models"
	"github.com/self-labs/hass-stack/risk/internal/repository"
	"github.com/self-labs/hass-stack/risk/internal/service"
)

// Handler exposes the risk agent's HTTP API.
type Handler struct {
	service *service.Service
	repo    repository.Repository
}

func NewHandler(svc *service.Service, repo repository.Repository) *Handler {
	return &Handler{service: svc, repo: repo}
}

// HandleValidate validates a proposed trade synchronously. Used by
// operators and the CLI; agents use the bus subject instead.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.ValidationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid validation request")
		return
	}
	if req.Symbol == "" {
		httputil.WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	result := h.service.Validate(r.Context(), req)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandlePortfolio returns the tracked portfolio state.
func (h *Handler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Engine().Portfolio())
}

// HandleReport returns the current VaR, leverage, and stress results.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.service.Engine().Report())
}

// HandleVerdicts lists recent validation decisions.
func (h *Handler) HandleVerdicts(w http.ResponseWriter, r *http.Request) {
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

	verdicts, err := h.service.Verdicts(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list verdicts")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verdicts)
}

// HandlePositions upserts a position (POST) or lists all positions (GET).
func (h *Handler) HandlePositions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		positions, err := h.repo.ListPositions(r.Context())
		if err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to list positions")
			return
		}
		httputil.WriteJSON(w, http.StatusOK, positions)

	case http.MethodPost:
		var pos models.Position
		if err := httputil.DecodeJSON(r, &pos); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "invalid position")
			return
		}
		if pos.Symbol == "" || pos.Quantity <= 0 || pos.EntryPrice <= 0 {
			httputil.WriteError(w, http.StatusBadRequest, "symbol, quantity, and entry_price are required")
			return
		}
		if pos.CurrentPrice <= 0 {
			pos.CurrentPrice = pos.EntryPrice
		}
		pos.UpdatedAt = time.Now().UTC()

		if err := h.repo.UpsertPosition(r.Context(), &pos); err != nil {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to save position")
			return
		}

		// Mirror into the engine's tracked portfolio.
		portfolio := h.service.Engine().Portfolio()
		portfolio.Positions[pos.Symbol] = pos
		h.service.Engine().SetPortfolio(portfolio)

		httputil.WriteJSON(w, http.StatusCreated, pos)

	default:
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports readiness.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
