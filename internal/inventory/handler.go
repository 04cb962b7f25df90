package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/kitchen/internal/platform/httpx"
)

// Handler exposes inventory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ingredients/low-stock", h.listLowStock)
	r.Get("/ingredients/{id}", h.getIngredient)
	r.Get("/ingredients/{id}/transactions", h.listTransactions)
	r.Get("/ingredients/{id}/reconciliation", h.reconcile)
	r.Post("/movements", h.recordMovement)
}

type movementRequest struct {
	IngredientID  int64            `json:"ingredient_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Type          string           `json:"transaction_type" validate:"required,oneof=usage adjustment waste return"`
	UnitPrice     *decimal.Decimal `json:"unit_price"`
	ReferenceKind string           `json:"reference_type" validate:"omitempty,oneof=Manual RecipeUsage"`
	ReferenceID   int64            `json:"reference_id" validate:"omitempty,gt=0"`
	Notes         string           `json:"notes" validate:"max=500"`
}

func (h *Handler) recordMovement(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req movementRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.RecordMovement(r.Context(), actor, MovementInput{
		IngredientID: req.IngredientID,
		Quantity:     req.Quantity,
		Type:         TransactionType(req.Type),
		UnitPrice:    req.UnitPrice,
		Reference:    Reference{Kind: RefKind(req.ReferenceKind), ID: req.ReferenceID},
		Notes:        req.Notes,
	})
	if err != nil {
		h.respondErr(w, "record movement", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ing, err := h.service.GetIngredient(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get ingredient", err)
		return
	}
	httpx.JSON(w, http.StatusOK, ing)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.ListTransactions(r.Context(), id, limit)
	if err != nil {
		h.respondErr(w, "list transactions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.respondErr(w, "reconcile ingredient", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListLowStock(r.Context(), nil)
	if err != nil {
		h.respondErr(w, "list low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"ingredients": items})
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
