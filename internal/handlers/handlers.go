// Package handlers serves the HTML pages of the url2 module and the login
// flow.
package handlers

import (
	"github.com/gofiber/fiber/v3"

	"url2/internal/config"
)

// notice renders a message page with a link to continue.
func notice(c fiber.Ctx, cfg *config.Config, status int, title, message, next string) error {
	return c.Status(status).Render("notice", MergeSite(c, fiber.Map{
		"Title":   title,
		"Message": message,
		"Next":    next,
	}, cfg))
}
