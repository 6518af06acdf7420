package controllers

import (
	"strconv"
	"strings"

	"recuperi_go/database"
	"recuperi_go/middleware"
	"recuperi_go/models"
	"recuperi_go/utils"

	"github.com/gofiber/fiber/v2"
)

type TeacherController struct{}

func NewTeacherController() *TeacherController {
	return &TeacherController{}
}

// GetTeachers lists teachers, with optional name search
func (tc *TeacherController) GetTeachers(c *fiber.Ctx) error {
	query := database.DB.Model(&models.Teacher{})

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(surname) LIKE ? OR LOWER(given_name) LIKE ?", like, like)
	}

	var teachers []models.Teacher
	if err := query.Order("surname ASC, given_name ASC").Find(&teachers).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch teachers",
		})
	}

	return c.JSON(fiber.Map{"teachers": teachers})
}

// GetTeacher returns a single teacher
func (tc *TeacherController) GetTeacher(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher ID"})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	}

	return c.JSON(fiber.Map{"teacher": teacher})
}

type upsertTeacherRequest struct {
	Surname   string `json:"surname"`
	GivenName string `json:"given_name"`
	Email     string `json:"email"`
}

// CreateTeacher registers a teacher (admin only)
func (tc *TeacherController) CreateTeacher(c *fiber.Ctx) error {
	var req upsertTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	req.Surname = utils.SanitizeString(req.Surname)
	req.GivenName = utils.SanitizeString(req.GivenName)
	if req.Surname == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "surname is required"})
	}

	teacher := models.Teacher{
		Surname:   req.Surname,
		GivenName: req.GivenName,
		Email:     utils.SanitizeString(req.Email),
	}
	if err := database.DB.Create(&teacher).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create teacher"})
	}

	middleware.LogActivity(c, "CREATE", "teachers", teacher.ID, fiber.Map{
		"name": teacher.FullName(),
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"teacher": teacher})
}

// UpdateTeacher edits teacher details (admin only)
func (tc *TeacherController) UpdateTeacher(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher ID"})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	}

	var req upsertTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if s := utils.SanitizeString(req.Surname); s != "" {
		updates["surname"] = s
	}
	if g := utils.SanitizeString(req.GivenName); g != "" {
		updates["given_name"] = g
	}
	if e := utils.SanitizeString(req.Email); e != "" {
		updates["email"] = e
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nothing to update"})
	}

	if err := database.DB.Model(&teacher).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update teacher"})
	}

	middleware.LogActivity(c, "UPDATE", "teachers", teacher.ID, updates)

	return c.JSON(fiber.Map{"teacher": teacher})
}

// DeleteTeacher soft deletes a teacher, refusing while activities exist (admin only)
func (tc *TeacherController) DeleteTeacher(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid teacher ID"})
	}

	var teacher models.Teacher
	if err := database.DB.First(&teacher, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Teacher not found"})
	}

	var activityCount int64
	database.DB.Model(&models.RecoveryActivity{}).Where("teacher_id = ?", teacher.ID).Count(&activityCount)
	if activityCount > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Teacher has recorded activities and cannot be deleted",
		})
	}

	if err := database.DB.Delete(&teacher).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete teacher"})
	}

	middleware.LogActivity(c, "DELETE", "teachers", uint(id), nil)

	return c.JSON(fiber.Map{"message": "Teacher deleted"})
}
