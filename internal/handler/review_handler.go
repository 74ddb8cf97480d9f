package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/grading"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/session"
	"github.com/rubriq/rubriq-api/internal/utils"
)

// ReviewHandler manages the grade review endpoints.
type ReviewHandler struct {
	service service.ReviewService
	logger  zerolog.Logger
}

// NewReviewHandler builds a review handler instance.
func NewReviewHandler(service service.ReviewService, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		logger:  logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Post("/load", h.load)
	router.Get("/current", h.current)
	router.Post("/select", h.selectSubmission)
	router.Post("/next", h.next)
	router.Post("/previous", h.previous)
	router.Patch("/score", h.updateScore)
	router.Patch("/feedback", h.updateFeedback)
	router.Get("/stats", h.stats)
	router.Get("/export", h.export)
	router.Post("/reset", h.reset)
}

func (h *ReviewHandler) load(c *fiber.Ctx) error {
	var payload dto.ReviewLoadRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.Load(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "review session loaded", state)
}

func (h *ReviewHandler) current(c *fiber.Ctx) error {
	state, err := h.service.Current(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "current submission retrieved", state)
}

func (h *ReviewHandler) selectSubmission(c *fiber.Ctx) error {
	var payload dto.ReviewSelectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.Select(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission selected", state)
}

func (h *ReviewHandler) next(c *fiber.Ctx) error {
	state, err := h.service.Next(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "moved to next submission", state)
}

func (h *ReviewHandler) previous(c *fiber.Ctx) error {
	state, err := h.service.Previous(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "moved to previous submission", state)
}

func (h *ReviewHandler) updateScore(c *fiber.Ctx) error {
	var payload dto.ReviewScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.UpdateScore(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "score updated", state)
}

func (h *ReviewHandler) updateFeedback(c *fiber.Ctx) error {
	var payload dto.ReviewFeedbackRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	state, err := h.service.UpdateFeedback(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "feedback updated", state)
}

func (h *ReviewHandler) stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "grade stats retrieved", stats)
}

// export streams the review session as a CSV download.
func (h *ReviewHandler) export(c *fiber.Ctx) error {
	filename, csv, err := h.service.ExportCSV(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.SendString(csv)
}

func (h *ReviewHandler) reset(c *fiber.Ctx) error {
	h.service.Reset(c.Context(), userIDFromContext(c))
	return utils.SendSuccess(c, "review session reset", nil)
}

func (h *ReviewHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := handleCommonError(c, err); handled {
		return resp
	}

	switch {
	case errors.Is(err, session.ErrNothingLoaded):
		return utils.SendError(c, fiber.StatusConflict, "no review session loaded")
	case errors.Is(err, session.ErrNoSelection):
		return utils.SendError(c, fiber.StatusConflict, "no submission selected")
	case errors.Is(err, session.ErrNoGrades):
		return utils.SendError(c, fiber.StatusNotFound, "no grades recorded")
	case errors.Is(err, service.ErrJobNotCompleted):
		return utils.SendError(c, fiber.StatusConflict, "grading job has not completed")
	case errors.Is(err, grading.ErrJobNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "grading job not found")
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
