package kitchenperm

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/kitchen/internal/platform/httpx"
	"github.com/odyssey-erp/kitchen/internal/shared"
)

// Handler exposes registry administration endpoints.
type Handler struct {
	logger    *slog.Logger
	registry  *Registry
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, registry *Registry) *Handler {
	return &Handler{logger: logger, registry: registry, validator: httpx.NewValidator()}
}

// MountRoutes registers registry routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.grant)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.revoke)
}

type grantRequest struct {
	UserID         int64            `json:"user_id" validate:"required,gt=0"`
	CanAutoApprove bool             `json:"can_auto_approve"`
	MaxOrderValue  *decimal.Decimal `json:"max_order_value"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	Notes          string           `json:"notes" validate:"max=500"`
}

type updateRequest struct {
	CanAutoApprove *bool            `json:"can_auto_approve"`
	MaxOrderValue  *decimal.Decimal `json:"max_order_value"`
	ClearMaxValue  bool             `json:"clear_max_order_value"`
	ExpiresAt      *time.Time       `json:"expires_at"`
	ClearExpiry    bool             `json:"clear_expires_at"`
	IsActive       *bool            `json:"is_active"`
	Notes          *string          `json:"notes" validate:"omitempty,max=500"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, _ := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	perms, err := h.registry.ListForUser(r.Context(), actor, userID)
	if err != nil {
		h.respondErr(w, "list kitchen permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	p, err := h.registry.Get(r.Context(), actor, id)
	if err != nil {
		h.respondErr(w, "get kitchen permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req grantRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.registry.Grant(r.Context(), actor, GrantInput(req))
	if err != nil {
		h.respondErr(w, "grant kitchen permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.registry.Update(r.Context(), actor, id, UpdateInput(req))
	if err != nil {
		h.respondErr(w, "update kitchen permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.actorAndID(w, r)
	if !ok {
		return
	}
	p, err := h.registry.Revoke(r.Context(), actor, id)
	if err != nil {
		h.respondErr(w, "revoke kitchen permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, bool) {
	actor, err := httpx.Actor(r)
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, 0, false
	}
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return shared.Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}
