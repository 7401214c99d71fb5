package purchasing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmacore/pharmacore/internal/platform/httpx"
	"github.com/pharmacore/pharmacore/internal/shared"
)

// IdempotencyPort guards the receive endpoint against duplicate submissions.
// Keys are scoped per organization.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, orgID int64, key, module string) error
	Delete(ctx context.Context, orgID int64, key string) error
}

// Handler exposes the purchase order HTTP API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	idem     IdempotencyPort
}

// NewHandler creates a handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, idem IdempotencyPort) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, idem: idem}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Patch("/{id}/status", h.updateStatus)
	r.Post("/{id}/receive", h.receive)
	r.Post("/{id}/cancel", h.cancel)
	r.Get("/{id}/history", h.history)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Create(r.Context(), ident.OrganizationID, ident.UserID, req)
	if err != nil {
		h.respondError(w, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	filters := ListFilters{
		Status:  Status(q.Get("status")),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if s := q.Get("supplier_id"); s != "" {
		filters.SupplierID, _ = strconv.ParseInt(s, 10, 64)
	}
	if s := q.Get("start_date"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filters.StartDate = t
		}
	}
	if s := q.Get("end_date"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filters.EndDate = t
		}
	}
	if filters.Status != "" && !filters.Status.IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown status filter")
		return
	}
	orders, total, err := h.service.List(r.Context(), ident.OrganizationID, page, limit, filters)
	if err != nil {
		h.respondError(w, "list purchase orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Orders: orders, Total: total, Page: page, Limit: limit})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id, ident.OrganizationID)
	if err != nil {
		h.respondError(w, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.Update(r.Context(), id, ident.OrganizationID, ident.UserID, req)
	if err != nil {
		h.respondError(w, "update purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	var req StatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	po, err := h.service.UpdateStatus(r.Context(), id, ident.OrganizationID, ident.UserID, req.Status, req.Notes)
	if err != nil {
		h.respondError(w, "update purchase order status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	var req ReceiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), ident.OrganizationID, key, "purchasing"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Conflict", "request already processed")
				return
			}
			h.respondError(w, "receive idempotency check", err)
			return
		}
	}
	result, err := h.service.ReceiveItems(r.Context(), id, ident.OrganizationID, ident.UserID, req)
	if err != nil {
		// free the key so the caller can retry after a failed receive
		if key != "" && h.idem != nil {
			_ = h.idem.Delete(r.Context(), ident.OrganizationID, key)
		}
		h.respondError(w, "receive purchase order items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	po, err := h.service.Cancel(r.Context(), id, ident.OrganizationID, ident.UserID, req.Reason)
	if err != nil {
		h.respondError(w, "cancel purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	changes, err := h.service.StatusHistory(r.Context(), id, ident.OrganizationID)
	if err != nil {
		h.respondError(w, "purchase order history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": changes})
}

func (h *Handler) identityAndID(w http.ResponseWriter, r *http.Request) (shared.Identity, int64, bool) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return shared.Identity{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid purchase order id")
		return shared.Identity{}, 0, false
	}
	return ident, id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var transition *TransitionError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &transition), errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrDuplicateNumber):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
