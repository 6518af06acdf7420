package controllers

import (
	"strconv"
	"strings"
	"time"

	"recuperi_go/database"
	"recuperi_go/middleware"
	"recuperi_go/models"
	"recuperi_go/services"

	"github.com/gofiber/fiber/v2"
)

type SchoolYearController struct {
	years *services.SchoolYearService
}

func NewSchoolYearController() *SchoolYearController {
	return &SchoolYearController{years: services.NewSchoolYearService(database.DB)}
}

// GetSchoolYears lists all school years, newest first
func (sc *SchoolYearController) GetSchoolYears(c *fiber.Ctx) error {
	var years []models.SchoolYear
	if err := database.DB.Order("name DESC").Find(&years).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch school years",
		})
	}
	return c.JSON(fiber.Map{"school_years": years})
}

// GetActiveSchoolYear returns the single active year
func (sc *SchoolYearController) GetActiveSchoolYear(c *fiber.Ctx) error {
	year, err := sc.years.Active()
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(fiber.Map{"school_year": year})
}

// CreateSchoolYear adds a school year (admin only)
func (sc *SchoolYearController) CreateSchoolYear(c *fiber.Ctx) error {
	var req struct {
		Name      string `json:"name"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name is required"})
	}
	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start_date, expected YYYY-MM-DD"})
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil || !end.After(start) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid end_date, must follow start_date"})
	}

	year := models.SchoolYear{Name: req.Name, StartDate: start, EndDate: end}
	if err := database.DB.Create(&year).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "School year already exists"})
	}

	middleware.LogActivity(c, "CREATE", "school_years", year.ID, fiber.Map{"name": year.Name})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"school_year": year})
}

// ActivateSchoolYear makes a year the active one, deactivating the rest (admin only)
func (sc *SchoolYearController) ActivateSchoolYear(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid school year ID"})
	}

	year, err := sc.years.Activate(uint(id))
	if err != nil {
		return handleServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "school_years", year.ID, fiber.Map{"is_active": true})

	return c.JSON(fiber.Map{"school_year": year})
}

// DeleteSchoolYear removes a year that has no budgets attached (admin only)
func (sc *SchoolYearController) DeleteSchoolYear(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid school year ID"})
	}

	if err := sc.years.Delete(uint(id)); err != nil {
		return handleServiceError(c, err)
	}

	middleware.LogActivity(c, "DELETE", "school_years", uint(id), nil)

	return c.JSON(fiber.Map{"message": "School year deleted"})
}
