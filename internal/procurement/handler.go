package procurement

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/kitchen/internal/platform/httpx"
	"github.com/odyssey-erp/kitchen/internal/shared"
)

// IdempotencyHeader carries the client supplied key for order creation.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages procurement endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}", h.updateOrder)
	r.Delete("/orders/{id}", h.deleteOrder)
	r.Post("/orders/{id}/transitions", h.transition)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createOrderRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.CreateOrder(r.Context(), actor, req.toInput(r.Header.Get(IdempotencyHeader)))
	if err != nil {
		h.respondErr(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	filters, err := parseListFilters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	orders, total, err := h.service.ListOrders(r.Context(), filters)
	if err != nil {
		h.respondErr(w, "list orders", err)
		return
	}
	if orders == nil {
		orders = []PurchaseOrder{}
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Orders: orders,
		Total:  total,
		Limit:  shared.ClampLimit(filters.Limit),
		Offset: filters.Offset,
	})
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateOrderRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), actor, id, req.toInput())
	if err != nil {
		h.respondErr(w, "update order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteOrder(r.Context(), actor, id); err != nil {
		h.respondErr(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req transitionRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Transition(r.Context(), actor, TransitionInput{
		OrderID:        id,
		Target:         Status(req.Status),
		Notes:          req.Notes,
		RejectReason:   req.RejectReason,
		ExpectedStatus: Status(req.ExpectedStatus),
	})
	if err != nil {
		h.respondErr(w, "transition order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		h.logger.Debug(op, slog.String("field", vErr.Field), slog.String("reason", vErr.Reason))
	case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrNotFound):
		h.logger.Info(op, slog.Any("error", err))
	default:
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseListFilters(r *http.Request) (ListFilters, error) {
	q := r.URL.Query()
	filters := ListFilters{Status: Status(q.Get("status"))}
	var err error
	if filters.From, err = parseDate(q.Get("from")); err != nil {
		return ListFilters{}, fmt.Errorf("%w: from: %v", shared.ErrValidation, err)
	}
	if filters.To, err = parseDate(q.Get("to")); err != nil {
		return ListFilters{}, fmt.Errorf("%w: to: %v", shared.ErrValidation, err)
	}
	if filters.SupplierID, err = parseInt64(q.Get("supplier_id")); err != nil {
		return ListFilters{}, fmt.Errorf("%w: supplier_id: %v", shared.ErrValidation, err)
	}
	if filters.RequesterID, err = parseInt64(q.Get("requester_id")); err != nil {
		return ListFilters{}, fmt.Errorf("%w: requester_id: %v", shared.ErrValidation, err)
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))
	return filters, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

func parseInt64(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
