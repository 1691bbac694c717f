package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/aquastore/cart-pricing/internal/model"
	"github.com/aquastore/cart-pricing/internal/service"
	"github.com/aquastore/cart-pricing/internal/session"
)

// SessionManagerInterface defines the cart session operations the handlers
// depend on.
type SessionManagerInterface interface {
	Get(sessionID string) model.CartResponse
	AddItem(ctx context.Context, sessionID string, item model.CartLineItem) (model.CartResponse, error)
	UpdateQuantity(ctx context.Context, sessionID, canonicalID string, quantity int) (model.CartResponse, error)
	RemoveItem(ctx context.Context, sessionID, canonicalID string) (model.CartResponse, error)
	ApplyCoupon(ctx context.Context, sessionID, code string) (*service.EvaluationResult, model.CartResponse, error)
	RemoveCoupon(sessionID string) model.CartResponse
}

// CartHandler handles HTTP requests for cart and coupon operations.
type CartHandler struct {
	sessions  SessionManagerInterface
	validator *validator.Validate
}

// NewCartHandler creates a new CartHandler with the given session manager
// and validator.
func NewCartHandler(sessions SessionManagerInterface, v *validator.Validate) *CartHandler {
	return &CartHandler{sessions: sessions, validator: v}
}

// sessionID extracts the session identifier header, or "" if absent.
func sessionID(c *fiber.Ctx) string {
	return c.Get("X-Session-ID")
}

func missingSession(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid request: X-Session-ID header is required",
	})
}

// GetCart handles GET /api/cart requests.
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	sid := sessionID(c)
	if sid == "" {
		return missingSession(c)
	}
	return c.JSON(h.sessions.Get(sid))
}

// AddItem handles POST /api/cart/items requests.
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	sid := sessionID(c)
	if sid == "" {
		return missingSession(c)
	}

	var req model.AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	item := model.CartLineItem{
		CanonicalID: req.CanonicalID,
		Slug:        req.Slug,
		UnitPrice:   req.UnitPrice,
		SalePrice:   req.SalePrice,
		Quantity:    req.Quantity,
		StockLimit:  req.StockLimit,
	}
	cart, err := h.sessions.AddItem(c.Context(), sid, item)
	if err != nil {
		if errors.Is(err, session.ErrStockExceeded) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "requested quantity exceeds available stock"})
		}
		log.Error().Err(err).Str("canonical_id", req.CanonicalID).Msg("failed to add cart item")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	return c.Status(fiber.StatusCreated).JSON(cart)
}

// UpdateQuantity handles PATCH /api/cart/items/:id requests. A quantity
// below 1 removes the line item.
func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	sid := sessionID(c)
	if sid == "" {
		return missingSession(c)
	}
	id := c.Params("id")

	var req model.UpdateQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	cart, err := h.sessions.UpdateQuantity(c.Context(), sid, id, req.Quantity)
	if err != nil {
		return h.cartMutationError(c, id, err)
	}
	return c.JSON(cart)
}

// RemoveItem handles DELETE /api/cart/items/:id requests.
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	sid := sessionID(c)
	if sid == "" {
		return missingSession(c)
	}
	id := c.Params("id")

	cart, err := h.sessions.RemoveItem(c.Context(), sid, id)
	if err != nil {
		return h.cartMutationError(c, id, err)
	}
	return c.JSON(cart)
}

// ApplyCoupon handles POST /api/cart/coupon requests. Business rejections
// (unknown code, date window, not applicable) come back as 422 with the
// evaluator's reason; infrastructure failures as 502.
func (h *CartHandler) ApplyCoupon(c *fiber.Ctx) error {
	sid := sessionID(c)
	if sid == "" {
		return missingSession(c)
	}

	var req model.ApplyCouponRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatValidationError(err)})
	}

	result, cart, err := h.sessions.ApplyCoupon(c.Context(), sid, req.Code)
	if err != nil {
		if errors.Is(err, service.ErrEvaluationSuperseded) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "a newer coupon request replaced this one"})
		}
		log.Error().Err(err).Str("code", req.Code).Msg("coupon validation failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to validate coupon, try again"})
	}
	if !result.Valid {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"valid":  false,
			"reason": result.Reason,
			"error":  result.Reason.Message(),
		})
	}
	return c.JSON(cart)
}

// RemoveCoupon handles DELETE /api/cart/coupon requests.
func (h *CartHandler) RemoveCoupon(c *fiber.Ctx) error {
	sid := sessionID(c)
	if sid == "" {
		return missingSession(c)
	}
	return c.JSON(h.sessions.RemoveCoupon(sid))
}

func (h *CartHandler) cartMutationError(c *fiber.Ctx, id string, err error) error {
	if errors.Is(err, session.ErrItemNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "cart item not found"})
	}
	if errors.Is(err, session.ErrStockExceeded) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "requested quantity exceeds available stock"})
	}
	log.Error().Err(err).Str("canonical_id", id).Msg("cart mutation failed")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
}

// formatValidationError converts validator errors to user-facing messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			switch fe.Tag() {
			case "required":
				return "invalid request: " + field + " is required"
			case "notblank":
				return "invalid request: " + field + " cannot be whitespace only"
			case "max":
				return "invalid request: " + field + " exceeds maximum length"
			case "gte":
				return "invalid request: " + field + " is below the allowed minimum"
			default:
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}
