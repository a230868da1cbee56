package accounts

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Handler exposes the account directory over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches account routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/toggle", h.ToggleActive)
	r.Delete("/{id}", h.Delete)
	r.Get("/hierarchy/{shopID}", h.Hierarchy)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		shared.WriteError(w, shared.NewValidationError(err.Error()))
		return
	}
	account, err := h.service.Create(r.Context(), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "create account", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, account)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get account", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		shared.WriteError(w, shared.NewValidationError(err.Error()))
		return
	}
	account, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, "update account", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, account)
}

func (h *Handler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	account, warning, err := h.service.ToggleActive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "toggle account", err)
		return
	}
	body := map[string]any{"account": account}
	if warning != "" {
		body["warning"] = warning
	}
	shared.WriteJSON(w, http.StatusOK, body)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Hierarchy(w http.ResponseWriter, r *http.Request) {
	forest, err := h.service.Hierarchy(r.Context(), chi.URLParam(r, "shopID"))
	if err != nil {
		h.fail(w, "account hierarchy", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, forest)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.WriteError(w, err)
}
