package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/utils"
)

// BillingHandler manages subscription endpoints and the Stripe webhook.
type BillingHandler struct {
	service service.BillingService
	logger  zerolog.Logger
}

// NewBillingHandler builds a billing handler instance.
func NewBillingHandler(service service.BillingService, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{
		service: service,
		logger:  logger.With().Str("component", "billing_handler").Logger(),
	}
}

// Register attaches the authenticated billing routes.
func (h *BillingHandler) Register(router fiber.Router) {
	router.Post("/checkout", h.checkout)
	router.Post("/cancel", h.cancel)
	router.Get("/subscription", h.subscription)
	router.Get("/payments", h.payments)
}

// RegisterWebhook attaches the unauthenticated Stripe webhook route.
func (h *BillingHandler) RegisterWebhook(router fiber.Router) {
	router.Post("/webhooks/stripe", h.webhook)
}

func (h *BillingHandler) checkout(c *fiber.Ctx) error {
	var payload dto.CheckoutRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.Checkout(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "checkout session created", resp)
}

func (h *BillingHandler) cancel(c *fiber.Ctx) error {
	if err := h.service.Cancel(c.Context(), userIDFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "subscription will cancel at period end", nil)
}

func (h *BillingHandler) subscription(c *fiber.Ctx) error {
	resp, err := h.service.Subscription(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "subscription retrieved", resp)
}

func (h *BillingHandler) payments(c *fiber.Ctx) error {
	payments, err := h.service.Payments(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "payments retrieved", payments)
}

// webhook verifies and applies a Stripe event. Signature failures are 400s;
// processing failures are 500s so Stripe retries the delivery.
func (h *BillingHandler) webhook(c *fiber.Ctx) error {
	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "missing stripe signature")
	}

	if err := h.service.HandleWebhook(c.Context(), c.Body(), signature); err != nil {
		if errors.Is(err, service.ErrInvalidWebhookSignature) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid stripe signature")
		}
		h.logger.Error().Err(err).Msg("stripe webhook processing failed")
		return utils.SendError(c, fiber.StatusInternalServerError, "webhook processing failed")
	}

	return utils.SendSuccess(c, "webhook processed", nil)
}

func (h *BillingHandler) handleError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrNoSubscription) {
		return utils.SendError(c, fiber.StatusNotFound, "no subscription found")
	}
	if handled, resp := handleCommonError(c, err); handled {
		return resp
	}

	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
