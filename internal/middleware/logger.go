package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/pkg/utils"
)

// LoggerMiddleware writes one access line per request: server errors at
// error level, client errors at warn and everything else at info.
func LoggerMiddleware(l *logrus.Logger) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		t := time.Now()
		err := c.Next()

		// Unhandled errors are rendered by the app error handler after us.
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		entry := l.WithFields(requestFields(c)).WithFields(logrus.Fields{
			"status":      status,
			"duration_ms": time.Since(t).Milliseconds(),
		})
		if err != nil {
			entry = entry.WithError(err)
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Error("request failed")
		case status >= fiber.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request served")
		}

		return err
	}
}

func requestFields(c *fiber.Ctx) logrus.Fields {
	fields := logrus.Fields{
		"request_id": c.Locals(utils.RequestIDKey),
		"method":     c.Method(),
		"path":       c.Path(),
	}

	if tenantID, ok := c.Locals(utils.TenantKey).(string); ok && tenantID != "" {
		fields["tenant_id"] = tenantID
	}
	if id := c.Params("cluster_id"); id != "" {
		fields["cluster_id"] = id
	}
	if id := c.Params("instance_id"); id != "" {
		fields["instance_id"] = id
	}

	return fields
}
