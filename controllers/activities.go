package controllers

import (
	"strconv"
	"time"

	"recuperi_go/database"
	"recuperi_go/middleware"
	"recuperi_go/models"
	"recuperi_go/services"

	"github.com/gofiber/fiber/v2"
)

type ActivityController struct {
	ledger *services.LedgerService
	years  *services.SchoolYearService
}

func NewActivityController() *ActivityController {
	return &ActivityController{
		ledger: services.NewLedgerService(database.DB),
		years:  services.NewSchoolYearService(database.DB),
	}
}

type createActivityRequest struct {
	TeacherID      uint   `json:"teacher_id"`
	SchoolYearID   uint   `json:"school_year_id"`
	RecoveryTypeID uint   `json:"recovery_type_id"`
	Date           string `json:"date"`
	ModuleNumber   int    `json:"module_number"`
	ClassName      string `json:"class_name"`
	Title          string `json:"title"`
	DurationMin    int    `json:"duration_min"`
	CoTeacherName  string `json:"co_teacher_name"`
}

type updateActivityRequest struct {
	RecoveryTypeID *uint   `json:"recovery_type_id"`
	Date           *string `json:"date"`
	ModuleNumber   *int    `json:"module_number"`
	ClassName      *string `json:"class_name"`
	Title          *string `json:"title"`
	DurationMin    *int    `json:"duration_min"`
	CoTeacherName  *string `json:"co_teacher_name"`
}

// GetActivities lists activities with optional filters
func (ac *ActivityController) GetActivities(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset := (page - 1) * limit

	query := database.DB.Model(&models.RecoveryActivity{})

	if yearID := c.Query("school_year_id"); yearID != "" {
		query = query.Where("school_year_id = ?", yearID)
	}
	if teacherID := c.Query("teacher_id"); teacherID != "" {
		query = query.Where("teacher_id = ?", teacherID)
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if className := c.Query("class_name"); className != "" {
		query = query.Where("class_name = ?", className)
	}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			query = query.Where("date >= ?", services.NormalizeDate(t))
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			query = query.Where("date <= ?", services.NormalizeDate(t))
		}
	}

	// Teachers only see their own slots
	if claims, err := middleware.GetCurrentClaims(c); err == nil && !claims.IsAdmin() {
		if claims.TeacherID == nil {
			return c.JSON(fiber.Map{"activities": []models.RecoveryActivity{}, "pagination": fiber.Map{"page": page, "limit": limit, "total": 0}})
		}
		query = query.Where("teacher_id = ?", *claims.TeacherID)
	}

	var total int64
	query.Count(&total)

	var activities []models.RecoveryActivity
	if err := query.Preload("Teacher").Preload("RecoveryType").Preload("SchoolYear").
		Order("date DESC, module_number ASC").
		Offset(offset).Limit(limit).Find(&activities).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch activities",
		})
	}

	return c.JSON(fiber.Map{
		"activities": activities,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetActivity returns a single activity by ID
func (ac *ActivityController) GetActivity(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid activity ID"})
	}

	activity, err := ac.ledger.GetActivity(uint(id))
	if err != nil {
		return handleServiceError(c, err)
	}
	if !middleware.CanActOnTeacher(c, activity.TeacherID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	return c.JSON(fiber.Map{"activity": activity})
}

// CreateActivity books a recovery slot through the ledger engine
func (ac *ActivityController) CreateActivity(c *fiber.Ctx) error {
	var req createActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	claims, err := middleware.GetCurrentClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing user claims"})
	}

	// Non-admins always book for themselves
	if !claims.IsAdmin() {
		if claims.TeacherID == nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "No teacher profile linked to this account"})
		}
		req.TeacherID = *claims.TeacherID
	}
	if req.TeacherID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "teacher_id is required"})
	}

	if req.SchoolYearID == 0 {
		year, err := ac.years.Active()
		if err != nil {
			return handleServiceError(c, err)
		}
		req.SchoolYearID = year.ID
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, expected YYYY-MM-DD"})
	}

	activity, warning, err := ac.ledger.CreateActivity(services.CreateActivityInput{
		TeacherID:      req.TeacherID,
		SchoolYearID:   req.SchoolYearID,
		RecoveryTypeID: req.RecoveryTypeID,
		Date:           date,
		ModuleNumber:   req.ModuleNumber,
		ClassName:      req.ClassName,
		Title:          req.Title,
		DurationMin:    req.DurationMin,
		CoTeacherName:  req.CoTeacherName,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	middleware.LogActivity(c, "CREATE", "activities", activity.ID, fiber.Map{
		"teacher_id":    activity.TeacherID,
		"date":          activity.Date.Format("2006-01-02"),
		"module_number": activity.ModuleNumber,
	})

	response := fiber.Map{"activity": activity}
	if warning != "" {
		response["warning"] = warning
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// UpdateActivity edits a planned activity
func (ac *ActivityController) UpdateActivity(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid activity ID"})
	}

	existing, err := ac.ledger.GetActivity(uint(id))
	if err != nil {
		return handleServiceError(c, err)
	}
	if !middleware.CanActOnTeacher(c, existing.TeacherID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var req updateActivityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	patch := services.UpdateActivityInput{
		RecoveryTypeID: req.RecoveryTypeID,
		ModuleNumber:   req.ModuleNumber,
		ClassName:      req.ClassName,
		Title:          req.Title,
		DurationMin:    req.DurationMin,
		CoTeacherName:  req.CoTeacherName,
	}
	if req.Date != nil {
		date, err := time.Parse("2006-01-02", *req.Date)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid date, expected YYYY-MM-DD"})
		}
		patch.Date = &date
	}

	activity, warning, err := ac.ledger.UpdateActivity(uint(id), patch)
	if err != nil {
		return handleServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "activities", activity.ID, nil)

	response := fiber.Map{"activity": activity}
	if warning != "" {
		response["warning"] = warning
	}
	return c.JSON(response)
}

// ToggleStatus flips an activity between planned and completed
func (ac *ActivityController) ToggleStatus(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid activity ID"})
	}

	existing, err := ac.ledger.GetActivity(uint(id))
	if err != nil {
		return handleServiceError(c, err)
	}
	if !middleware.CanActOnTeacher(c, existing.TeacherID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	var req struct {
		Completed bool `json:"completed"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	activity, err := ac.ledger.ToggleCompletion(uint(id), req.Completed)
	if err != nil {
		return handleServiceError(c, err)
	}

	middleware.LogActivity(c, "UPDATE", "activities", activity.ID, fiber.Map{
		"status": activity.Status,
	})

	return c.JSON(fiber.Map{"activity": activity})
}

// DeleteActivity removes a planned activity and refunds its budget cost
func (ac *ActivityController) DeleteActivity(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid activity ID"})
	}

	existing, err := ac.ledger.GetActivity(uint(id))
	if err != nil {
		return handleServiceError(c, err)
	}
	if !middleware.CanActOnTeacher(c, existing.TeacherID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	warning, err := ac.ledger.DeleteActivity(uint(id))
	if err != nil {
		return handleServiceError(c, err)
	}

	middleware.LogActivity(c, "DELETE", "activities", uint(id), fiber.Map{
		"teacher_id": existing.TeacherID,
	})

	response := fiber.Map{"message": "Activity deleted"}
	if warning != "" {
		response["warning"] = warning
	}
	return c.JSON(response)
}
