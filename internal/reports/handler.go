package reports

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Handler exposes the aggregator over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/balance/{accountID}/{yearID}", h.Balance)
	r.Get("/profit/{shopID}/{yearID}", h.Profit)
	r.Post("/matrix", h.Matrix)
	r.Get("/stock-continuity/{shopID}", h.StockContinuity)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	var asOf time.Time
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			shared.WriteError(w, shared.NewValidationError("as_of must be YYYY-MM-DD"))
			return
		}
		asOf = parsed
	}
	balance, err := h.service.BalanceAsOf(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "yearID"), asOf)
	if err != nil {
		h.fail(w, "balance as of", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"balance": balance})
}

func (h *Handler) Profit(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.ProfitFor(r.Context(), chi.URLParam(r, "shopID"), chi.URLParam(r, "yearID"))
	if err != nil {
		h.fail(w, "profit report", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) Matrix(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Balances []DimensionalBalance `json:"balances"`
		ShopIDs  []string             `json:"shopIds,omitempty"`
		YearIDs  []string             `json:"yearIds,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	matrix := MultiDimensional(body.Balances, Criteria{ShopIDs: body.ShopIDs, YearIDs: body.YearIDs})
	shared.WriteJSON(w, http.StatusOK, matrix)
}

func (h *Handler) StockContinuity(w http.ResponseWriter, r *http.Request) {
	discrepancies, err := h.service.ValidateStockContinuity(r.Context(), chi.URLParam(r, "shopID"))
	if err != nil {
		h.fail(w, "stock continuity", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"consistent":    len(discrepancies) == 0,
		"discrepancies": discrepancies,
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.WriteError(w, err)
}
