package fiscal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Handler exposes read-only financial year lookups.
type Handler struct {
	registry Registry
	logger   *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, registry Registry) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// MountRoutes attaches financial year routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/open/{shopID}", h.Open)
	r.Get("/shop/{shopID}", h.ByShop)
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	year, err := h.registry.OpenYear(r.Context(), chi.URLParam(r, "shopID"))
	if err != nil {
		h.fail(w, "open financial year", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, year)
}

func (h *Handler) ByShop(w http.ResponseWriter, r *http.Request) {
	years, err := h.registry.YearsByShop(r.Context(), chi.URLParam(r, "shopID"))
	if err != nil {
		h.fail(w, "financial years by shop", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, years)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.WriteError(w, err)
}
