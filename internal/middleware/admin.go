package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/rubriq/rubriq-api/internal/utils"
)

// RequireAdminEmail restricts a route to a fixed set of operator emails,
// matched against the authenticated JWT email claim.
func RequireAdminEmail(emails []string) fiber.Handler {
	allowed := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		normalized := strings.ToLower(strings.TrimSpace(email))
		if normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		email, _ := c.Locals("user_email").(string)
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(email))]; !ok || email == "" {
			return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
