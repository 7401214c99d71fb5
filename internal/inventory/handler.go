package inventory

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pharmacore/pharmacore/internal/platform/httpx"
	"github.com/pharmacore/pharmacore/internal/shared"
)

// Handler exposes the inventory HTTP API.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.stock)
	r.Get("/stock/low", h.lowStock)
	r.Get("/stock/{medicineID}", h.medicineStock)
	r.Get("/transactions", h.transactions)
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	levels, err := h.service.StockLevels(r.Context(), ident.OrganizationID)
	if err != nil {
		h.logger.Error("stock levels", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock": levels})
}

func (h *Handler) lowStock(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	levels, err := h.service.LowStock(r.Context(), ident.OrganizationID)
	if err != nil {
		h.logger.Error("low stock", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stock": levels})
}

func (h *Handler) medicineStock(w http.ResponseWriter, r *http.Request) {
	ident, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing identity")
		return
	}
	medicineID, err := strconv.ParseInt(chi.URLParam(r, "medicineID"), 10, 64)
	if err != nil || medicineID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid medicine id")
		return
	}
	level, err := h.service.MedicineStock(r.Context(), ident.OrganizationID, medicineID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("medicine stock", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, level)
}

func (h *Handler) transactions(w http.ResponseWriter, r *http.Request) {
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
	filter := TransactionFilter{Type: TransactionType(q.Get("type"))}
	if filter.Type != "" && !filter.Type.IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown transaction type")
		return
	}
	if s := q.Get("medicine_id"); s != "" {
		filter.MedicineID, _ = strconv.ParseInt(s, 10, 64)
	}
	if s := q.Get("from"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.From = t
		}
	}
	if s := q.Get("to"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.To = t
		}
	}
	txs, total, err := h.service.Transactions(r.Context(), ident.OrganizationID, filter, page, limit)
	if err != nil {
		h.logger.Error("list transactions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	pagination := shared.NewPagination(page, limit, total)
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": txs, "total": total, "page": pagination.Page, "total_pages": pagination.TotalPages})
}
