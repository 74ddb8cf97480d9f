package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/rubriq/rubriq-api/internal/canvas"
	"github.com/rubriq/rubriq-api/internal/service"
	"github.com/rubriq/rubriq-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// handleCommonError maps errors shared across handlers: account and Canvas
// connection state, validation failures and upstream Canvas errors. Returns
// false when the error needs handler-specific mapping.
func handleCommonError(c *fiber.Ctx, err error) (bool, error) {
	var apiErr *canvas.APIError
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		return true, utils.SendError(c, fiber.StatusNotFound, "user not found")
	case errors.Is(err, service.ErrCanvasNotConnected):
		return true, utils.SendError(c, fiber.StatusBadRequest, "canvas account is not connected")
	case errors.Is(err, service.ErrNoCourseSelected):
		return true, utils.SendError(c, fiber.StatusBadRequest, "no course selected")
	case isValidationError(err):
		return true, utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.As(err, &apiErr):
		switch apiErr.StatusCode {
		case fiber.StatusUnauthorized:
			return true, utils.SendError(c, fiber.StatusBadGateway, "canvas rejected the stored credentials")
		case fiber.StatusNotFound:
			return true, utils.SendError(c, fiber.StatusNotFound, apiErr.Message)
		}
		return true, utils.SendError(c, fiber.StatusBadGateway, apiErr.Message)
	}
	return false, nil
}
