package handlers

import (
	"github.com/gofiber/fiber/v3"

	"url2/internal/config"
	"url2/internal/models"
)

// SiteData contains site information shared by every page.
type SiteData struct {
	SiteTitle string
	Lang      string
	BaseURL   string
}

// GetSiteData returns site data from config for template rendering.
func GetSiteData(cfg *config.Config) SiteData {
	return SiteData{
		SiteTitle: cfg.SiteTitle,
		Lang:      cfg.SiteLang,
		BaseURL:   cfg.BaseURL,
	}
}

// MergeSite adds site data and the current user to a fiber.Map for template
// rendering.
func MergeSite(c fiber.Ctx, data fiber.Map, cfg *config.Config) fiber.Map {
	site := GetSiteData(cfg)
	data["SiteTitle"] = site.SiteTitle
	data["Lang"] = site.Lang
	data["BaseURL"] = site.BaseURL
	if user, ok := c.Locals("user").(*models.User); ok {
		data["User"] = user
		if user.Lang != "" {
			data["Lang"] = user.Lang
		}
	}
	return data
}
