package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"github.com/vmindtech/vdb/pkg/utils"
)

// LocalizerMiddleware picks the catalogue from Accept-Language. Unknown or
// missing languages get the bundle default.
func LocalizerMiddleware(b *i18n.Bundle) func(c *fiber.Ctx) error {
	return func(c *fiber.Ctx) error {
		c.Locals(utils.LocalizerKey, i18n.NewLocalizer(b, c.Get(fiber.HeaderAcceptLanguage)))

		return c.Next()
	}
}
