package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/vmindtech/vdb/pkg/response"
	"github.com/vmindtech/vdb/pkg/stacktrace"
	"github.com/vmindtech/vdb/pkg/utils"
)

const modulePath = "github.com/vmindtech/vdb"

// RecoverMiddleware turns a handler panic into the standard 500 body and
// logs the stack frames that belong to this module.
func RecoverMiddleware(l *logrus.Logger) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) (err error) {
		t := time.Now()

		defer func() {
			r := recover()
			if r == nil {
				return
			}

			panicErr, ok := r.(error)
			if !ok {
				panicErr = fmt.Errorf("%v", r)
			}

			frames := stacktrace.Capture(0).Within(modulePath)

			l.WithFields(requestFields(c)).WithFields(logrus.Fields{
				"status":      fiber.StatusInternalServerError,
				"duration_ms": time.Since(t).Milliseconds(),
				"origin":      frames.Top().String(),
				"stack":       frames,
			}).WithError(panicErr).Error("recovered from handler panic")

			errBag := utils.ErrorBag{Code: utils.UnexpectedErrCode, Message: utils.UnexpectedMsg}
			err = c.Status(fiber.StatusInternalServerError).
				JSON(response.NewErrorResponse(c.Context(), errBag))
		}()

		return c.Next()
	}
}
