package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/utils"
)

// AssignmentHandler manages Canvas assignment endpoints.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewAssignmentHandler builds an assignment handler instance.
func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/course", h.courseSummary)
	router.Get("/:id", h.get)
	router.Get("/:id/stats", h.stats)
	router.Get("/:id/submissions", h.submissions)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	assignments, err := h.service.List(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignments retrieved", assignments)
}

func (h *AssignmentHandler) courseSummary(c *fiber.Ctx) error {
	summary, err := h.service.CourseSummary(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course retrieved", summary)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	assignment, err := h.service.Get(c.Context(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) submissions(c *fiber.Ctx) error {
	submissions, err := h.service.Submissions(c.Context(), userIDFromContext(c), c.Params("id"), submissionFilter(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

// submissionFilter reads the status toggles from the query string. An omitted
// toggle leaves that status included; only an explicit false excludes it.
func submissionFilter(c *fiber.Ctx) canvas.Filter {
	return canvas.Filter{
		OnTime:      c.QueryBool("ontime", true),
		Late:        c.QueryBool("late", true),
		Resubmitted: c.QueryBool("resubmitted", true),
		Missing:     c.QueryBool("missing", true),
	}
}

func (h *AssignmentHandler) stats(c *fiber.Ctx) error {
	stats, err := h.service.SubmissionStats(c.Context(), userIDFromContext(c), c.Params("id"))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission stats retrieved", stats)
}

func (h *AssignmentHandler) handleError(c *fiber.Ctx, err error) error {
	if handled, resp := handleCommonError(c, err); handled {
		return resp
	}

	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
