package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/rubriq/rubriq-api/internal/dto"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/utils"
)

// UserHandler manages instructor profile and Canvas connection endpoints.
type UserHandler struct {
	service service.UserService
	logger  zerolog.Logger
}

// NewUserHandler builds a user handler instance.
func NewUserHandler(service service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *UserHandler) Register(router fiber.Router) {
	router.Post("/session", h.session)
	router.Get("/profile", h.profile)
	router.Put("/profile", h.updateProfile)
	router.Put("/canvas", h.connectCanvas)
	router.Get("/courses", h.courses)
	router.Post("/courses", h.addCourse)
	router.Put("/course", h.selectCourse)
}

// session provisions the account for the authenticated email on first
// sign-in and returns the profile.
func (h *UserHandler) session(c *fiber.Ctx) error {
	email, _ := c.Locals("user_email").(string)
	if email == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "missing email claim")
	}

	user, err := h.service.EnsureUser(c.Context(), email)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "session established", dto.NewUserResponse(user))
}

func (h *UserHandler) profile(c *fiber.Ctx) error {
	profile, err := h.service.Profile(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *UserHandler) updateProfile(c *fiber.Ctx) error {
	var payload dto.ProfileUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.service.UpdateProfile(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "profile updated", profile)
}

func (h *UserHandler) connectCanvas(c *fiber.Ctx) error {
	var payload dto.CanvasCredentialsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.service.ConnectCanvas(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "canvas account connected", profile)
}

func (h *UserHandler) courses(c *fiber.Ctx) error {
	courses, err := h.service.Courses(c.Context(), userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "courses retrieved", courses)
}

func (h *UserHandler) addCourse(c *fiber.Ctx) error {
	var payload dto.CourseAddRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	course, err := h.service.AddCourse(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "course saved", course)
}

func (h *UserHandler) selectCourse(c *fiber.Ctx) error {
	var payload dto.CourseSelectRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	profile, err := h.service.SelectCourse(c.Context(), userIDFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "course selected", profile)
}

func (h *UserHandler) handleError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrInvalidCanvasCredentials) {
		return utils.SendError(c, fiber.StatusBadRequest, "canvas rejected the supplied credentials")
	}
	if handled, resp := handleCommonError(c, err); handled {
		return resp
	}

	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
