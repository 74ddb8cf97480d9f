package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/utils"
)

// GradingHandler manages grading job endpoints.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/start", h.start)
	router.Get("/status/:jobId", h.status)
	router.Post("/wait/:jobId", h.wait)
	router.Post("/post", h.postGrades)
	router.Get("/history", h.history)
}

func (h *GradingHandler) start(c *fiber.Ctx) error {
	var payload dto.GradingStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.Start(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "grading started", resp)
}

func (h *GradingHandler) status(c *fiber.Ctx) error {
	resp, err := h.service.Status(c.Context(), c.Params("jobId"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "job status retrieved", resp)
}

// wait blocks until the job reaches a terminal state, then returns it. The
// request context bounds the wait, on top of the poller's own ceiling.
func (h *GradingHandler) wait(c *fiber.Ctx) error {
	resp, err := h.service.Await(c.Context(), c.Params("jobId"), nil)
	if err != nil {
		if errors.Is(err, grading.ErrTimeout) {
			return utils.SendError(c, fiber.StatusGatewayTimeout, "grading job timed out")
		}
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "job finished", resp)
}

func (h *GradingHandler) postGrades(c *fiber.Ctx) error {
	var payload dto.PostGradesRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.PostGrades(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grades posted", resp)
}

func (h *GradingHandler) history(c *fiber.Ctx) error {
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	entries, err := h.service.History(c.Context(), userIDFromContext(c), limit)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grading history retrieved", entries)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := handleCommonError(c, err); handled {
		return resp
	}

	switch {
	case errors.Is(err, service.ErrPaymentRequired):
		return utils.SendError(c, fiber.StatusPaymentRequired, "an active subscription is required to grade")
	case errors.Is(err, service.ErrJobNotCompleted):
		return utils.SendError(c, fiber.StatusConflict, "grading job has not completed")
	case errors.Is(err, grading.ErrJobNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "grading job not found")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
