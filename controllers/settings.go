package controllers

import (
	"fmt"

	"recuperi_go/database"
	"recuperi_go/middleware"
	"recuperi_go/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type SettingsController struct {
	importer *services.ImportService
}

func NewSettingsController() *SettingsController {
	return &SettingsController{importer: services.NewImportService(database.DB)}
}

// ClearActivities wipes every recorded activity and resets all budget usage counters (admin only)
func (sc *SettingsController) ClearActivities(c *fiber.Ctx) error {
	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := c.BodyParser(&req); err != nil || !req.Confirm {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Confirmation required: send {\"confirm\": true}",
		})
	}

	deleted, err := sc.importer.ClearAllActivities()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to clear activities",
		})
	}

	fields := logrus.Fields{"deleted": deleted}
	if user, err := middleware.GetCurrentUser(c); err == nil {
		fields["user_id"] = user.ID
	}
	logrus.WithFields(fields).Warn("All recovery activities cleared")

	middleware.LogActivity(c, "DELETE", "settings", 0, fiber.Map{
		"operation": "clear_activities",
		"deleted":   deleted,
	})

	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Deleted %d activities and reset all budget counters", deleted),
		"deleted": deleted,
	})
}
