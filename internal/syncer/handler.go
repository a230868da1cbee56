package syncer

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Handler exposes sync triggers and status over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger}
}

// MountRoutes attaches sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.Run)
	r.Post("/retry", h.Retry)
	r.Get("/status", h.Status)
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		shopID = actor.ShopID
	}
	summary, err := h.service.SyncAll(r.Context(), actor, shopID)
	if err != nil {
		h.fail(w, "sync run", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	shopID := r.URL.Query().Get("shop_id")
	if shopID == "" {
		shopID = actor.ShopID
	}
	summary, err := h.service.RetryFailed(r.Context(), actor, shopID)
	if err != nil {
		h.fail(w, "sync retry", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	state, last := h.service.Status()
	body := map[string]any{"state": state}
	if last != nil {
		body["last"] = last
	}
	shared.WriteJSON(w, http.StatusOK, body)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrSyncInProgress) {
		shared.WriteJSON(w, http.StatusConflict, map[string]any{"error": ErrSyncInProgress.Error()})
		return
	}
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.WriteError(w, err)
}
