package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ledgerlink/ledgerlink/app/models"
	"github.com/ledgerlink/ledgerlink/internal/pkg/database"
)

// AdminSettingsController exposes the runtime-tunable pipeline settings.
type AdminSettingsController struct{}

// NewAdminSettingsController wires the settings endpoints.
func NewAdminSettingsController() *AdminSettingsController {
	return &AdminSettingsController{}
}

// GetSettings is GET /api/v1/admin/settings.
func (ac *AdminSettingsController) GetSettings(c *fiber.Ctx) error {
	return c.JSON(models.GetAppSettings())
}

// UpdateSettings is PUT /api/v1/admin/settings. The full settings document is
// replaced; changed intervals apply on the next process restart, tolerances
// apply on the next sweep.
func (ac *AdminSettingsController) UpdateSettings(c *fiber.Ctx) error {
	var settings models.AppSettings
	if err := c.BodyParser(&settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if err := settings.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := models.SaveSettings(database.GetDB(), &settings); err != nil {
		log.Errorf("[Admin] Failed to save settings: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to save settings",
		})
	}

	log.Info("[Admin] Settings updated")
	return c.JSON(models.GetAppSettings())
}
