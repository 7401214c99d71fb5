package medicines

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pharmacore/pharmacore/internal/masterdata/shared"
	"github.com/pharmacore/pharmacore/internal/platform/httpx"
	internalshared "github.com/pharmacore/pharmacore/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.show)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ident, ok := internalshared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = shared.DefaultPage
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = shared.DefaultLimit
	}
	filters := shared.ListFilters{
		Page:    page,
		Limit:   limit,
		Search:  q.Get("search"),
		SortBy:  q.Get("sort"),
		SortDir: q.Get("dir"),
	}
	if s := q.Get("active"); s != "" {
		active := s == "true"
		filters.IsActive = &active
	}
	items, total, err := h.service.List(r.Context(), ident.OrganizationID, filters)
	if err != nil {
		h.logger.Error("list medicines", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"medicines": items, "total": total, "page": page, "limit": limit})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	medicine, err := h.service.Get(r.Context(), ident.OrganizationID, id)
	if err != nil {
		h.respondError(w, "get medicine", err)
		return
	}
	httpx.JSON(w, http.StatusOK, medicine)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	ident, ok := internalshared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	var medicine Medicine
	if err := httpx.DecodeJSON(r, &medicine); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	medicine.OrganizationID = ident.OrganizationID
	created, err := h.service.Create(r.Context(), medicine)
	if err != nil {
		h.respondError(w, "create medicine", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	var medicine Medicine
	if err := httpx.DecodeJSON(r, &medicine); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.Update(r.Context(), ident.OrganizationID, id, medicine); err != nil {
		h.respondError(w, "update medicine", err)
		return
	}
	updated, err := h.service.Get(r.Context(), ident.OrganizationID, id)
	if err != nil {
		h.respondError(w, "get medicine", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	ident, id, ok := h.identityAndID(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), ident.OrganizationID, id); err != nil {
		h.respondError(w, "deactivate medicine", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) identityAndID(w http.ResponseWriter, r *http.Request) (internalshared.Identity, int64, bool) {
	ident, ok := internalshared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return internalshared.Identity{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid medicine id")
		return internalshared.Identity{}, 0, false
	}
	return ident, id, true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.Is(err, shared.ErrInvalidID):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
