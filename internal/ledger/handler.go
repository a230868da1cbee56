package ledger

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/shopbooks/shopbooks/internal/shared"
)

// Handler exposes the posting engine over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes attaches transaction routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Post)
	r.Post("/validate", h.Validate)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Post("/{id}/reverse", h.Reverse)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	var in PostingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		shared.WriteError(w, shared.NewValidationError(err.Error()))
		return
	}
	tx, err := h.service.Post(r.Context(), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "post transaction", err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, tx)
}

// Validate pre-flights a candidate without posting it.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var in PostingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	result, err := h.service.Validate(r.Context(), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "validate transaction", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "get transaction", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	txs, pagination, err := h.service.List(r.Context(), q.Get("shop_id"), q.Get("financial_year_id"), page, perPage)
	if err != nil {
		h.fail(w, "list transactions", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"pagination":   pagination,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var in UpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	tx, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), in, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "update transaction", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		shared.WriteError(w, shared.NewValidationError("malformed request body"))
		return
	}
	tx, err := h.service.Reverse(r.Context(), chi.URLParam(r, "id"), body.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "reverse transaction", err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, tx)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !shared.IsClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	shared.WriteError(w, err)
}
