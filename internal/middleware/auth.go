package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/internal/service"
	"github.com/vmindtech/vdb/pkg/response"
	"github.com/vmindtech/vdb/pkg/utils"
)

// AuthMiddleware checks the caller's token against the project it claims and
// records the tenant for the handlers. Tokens of operatorProjectID act as
// operators.
func AuthMiddleware(l *logrus.Logger, identity service.IIdentityService, operatorProjectID string) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		authToken := c.Get(utils.AuthTokenHeaderKey)
		projectID := c.Get(utils.ProjectIDHeaderKey)
		if authToken == "" || projectID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(response.NewAuthorizationError())
		}

		if err := identity.CheckAuthToken(c.UserContext(), authToken, projectID); err != nil {
			l.WithFields(requestFields(c)).WithField("project_id", projectID).
				WithError(err).Warn("auth token rejected")

			return c.Status(fiber.StatusUnauthorized).JSON(response.NewAuthorizationError())
		}

		c.Locals(utils.TenantKey, projectID)
		c.Locals(utils.OperatorKey, operatorProjectID != "" && projectID == operatorProjectID)

		return c.Next()
	}
}
