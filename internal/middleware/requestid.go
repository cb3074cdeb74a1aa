package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vmindtech/vdb/internal/notification"
	"github.com/vmindtech/vdb/pkg/utils"
)

// RequestContextMiddleware carries the request id into the user context so
// workflows started by the request stamp it on their notifications.
func RequestContextMiddleware() func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		if id, ok := c.Locals(utils.RequestIDKey).(string); ok {
			c.SetUserContext(notification.WithRequestID(c.UserContext(), id))
		}

		return c.Next()
	}
}
