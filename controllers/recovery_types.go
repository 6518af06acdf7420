package controllers

import (
	"strconv"
	"strings"

	"recuperi_go/database"
	"recuperi_go/middleware"
	"recuperi_go/models"

	"github.com/gofiber/fiber/v2"
)

type RecoveryTypeController struct{}

func NewRecoveryTypeController() *RecoveryTypeController {
	return &RecoveryTypeController{}
}

// GetRecoveryTypes lists activity types; pass all=true to include inactive ones
func (rc *RecoveryTypeController) GetRecoveryTypes(c *fiber.Ctx) error {
	query := database.DB.Model(&models.RecoveryType{})
	if c.Query("all") != "true" {
		query = query.Where("is_active = ?", true)
	}

	var types []models.RecoveryType
	if err := query.Order("name ASC").Find(&types).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch recovery types",
		})
	}
	return c.JSON(fiber.Map{"recovery_types": types})
}

type upsertRecoveryTypeRequest struct {
	Name               string `json:"name"`
	Description        string `json:"description"`
	Color              string `json:"color"`
	DefaultDurationMin *int   `json:"default_duration_min"`
	RequiresApproval   *bool  `json:"requires_approval"`
	RequiresCoTeacher  *bool  `json:"requires_co_teacher"`
	IsActive           *bool  `json:"is_active"`
}

// CreateRecoveryType adds an activity type (admin only)
func (rc *RecoveryTypeController) CreateRecoveryType(c *fiber.Ctx) error {
	var req upsertRecoveryTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}

	rt := models.RecoveryType{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
		IsActive:    true,
	}
	if req.DefaultDurationMin != nil {
		rt.DefaultDurationMin = *req.DefaultDurationMin
	}
	if req.RequiresApproval != nil {
		rt.RequiresApproval = *req.RequiresApproval
	}
	if req.RequiresCoTeacher != nil {
		rt.RequiresCoTeacher = *req.RequiresCoTeacher
	}
	if req.IsActive != nil {
		rt.IsActive = *req.IsActive
	}

	if err := database.DB.Create(&rt).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Recovery type already exists"})
	}

	middleware.LogActivity(c, "CREATE", "recovery_types", rt.ID, fiber.Map{"name": rt.Name})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"recovery_type": rt})
}

// UpdateRecoveryType edits an activity type (admin only)
func (rc *RecoveryTypeController) UpdateRecoveryType(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid recovery type ID"})
	}

	var rt models.RecoveryType
	if err := database.DB.First(&rt, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Recovery type not found"})
	}

	var req upsertRecoveryTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if n := strings.TrimSpace(req.Name); n != "" {
		updates["name"] = n
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Color != "" {
		updates["color"] = req.Color
	}
	if req.DefaultDurationMin != nil {
		updates["default_duration_min"] = *req.DefaultDurationMin
	}
	if req.RequiresApproval != nil {
		updates["requires_approval"] = *req.RequiresApproval
	}
	if req.RequiresCoTeacher != nil {
		updates["requires_co_teacher"] = *req.RequiresCoTeacher
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nothing to update"})
	}

	if err := database.DB.Model(&rt).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update recovery type"})
	}

	middleware.LogActivity(c, "UPDATE", "recovery_types", rt.ID, updates)

	return c.JSON(fiber.Map{"recovery_type": rt})
}

// DeleteRecoveryType deactivates a type still referenced by activities, deletes it otherwise (admin only)
func (rc *RecoveryTypeController) DeleteRecoveryType(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid recovery type ID"})
	}

	var rt models.RecoveryType
	if err := database.DB.First(&rt, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Recovery type not found"})
	}

	var inUse int64
	database.DB.Model(&models.RecoveryActivity{}).Where("recovery_type_id = ?", rt.ID).Count(&inUse)
	if inUse > 0 {
		if err := database.DB.Model(&rt).Update("is_active", false).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate recovery type"})
		}
		middleware.LogActivity(c, "UPDATE", "recovery_types", rt.ID, fiber.Map{"is_active": false})
		return c.JSON(fiber.Map{
			"message": "Recovery type is in use and was deactivated instead of deleted",
		})
	}

	if err := database.DB.Delete(&rt).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete recovery type"})
	}

	middleware.LogActivity(c, "DELETE", "recovery_types", uint(id), nil)

	return c.JSON(fiber.Map{"message": "Recovery type deleted"})
}
