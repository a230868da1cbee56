package outbox

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopbooks/shopbooks/internal/ledger"
	"github.com/shopbooks/shopbooks/internal/shared"
)

// Handler exposes the offline queue over HTTP.
type Handler struct {
	queue  *Queue
	logger *slog.Logger
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, queue *Queue) *Handler {
	return &Handler{queue: queue, logger: logger}
}

// MountRoutes attaches queue routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Enqueue)
	r.Get("/count", h.CountPending)
	r.Patch("/{id}", h.Edit)
	r.Delete("/{id}", h.Remove)
}

func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var payload ledger.PostingInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	actor := shared.ActorFromContext(r.Context())
	shopID := payload.ShopID
	if shopID == "" {
		shopID = actor.ShopID
	}
	id, err := h.queue.Enqueue(r.Context(), payload, actor.ID, shopID)
	if err != nil {
		h.fail(w, "enqueue transaction", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.queue.List(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		h.fail(w, "list queue", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"items": records})
}

func (h *Handler) CountPending(w http.ResponseWriter, r *http.Request) {
	count, err := h.queue.CountPending(r.Context(), r.URL.Query().Get("shop_id"))
	if err != nil {
		h.fail(w, "count pending", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"pending": count})
}

func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	var payload ledger.PostingInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	if err := h.queue.Edit(r.Context(), chi.URLParam(r, "id"), payload); err != nil {
		h.fail(w, "edit queue item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "remove queue item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.WriteError(w, err)
}
