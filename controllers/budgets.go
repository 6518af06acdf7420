package controllers

import (
	"strconv"

	"recuperi_go/database"
	"recuperi_go/middleware"
	"recuperi_go/models"

	"github.com/gofiber/fiber/v2"
)

type BudgetController struct{}

func NewBudgetController() *BudgetController {
	return &BudgetController{}
}

type budgetView struct {
	models.RecoveryBudget
	MinutesRemaining int     `json:"minutes_remaining"`
	ModulesRemaining int     `json:"modules_remaining"`
	PercentageUsed   float64 `json:"percentage_used"`
}

func toBudgetView(b models.RecoveryBudget) budgetView {
	return budgetView{
		RecoveryBudget:   b,
		MinutesRemaining: b.MinutesRemaining(),
		ModulesRemaining: b.ModulesRemaining(),
		PercentageUsed:   b.PercentageUsed(),
	}
}

// GetBudgets lists budgets with derived remaining figures
func (bc *BudgetController) GetBudgets(c *fiber.Ctx) error {
	query := database.DB.Model(&models.RecoveryBudget{})

	if yearID := c.Query("school_year_id"); yearID != "" {
		query = query.Where("school_year_id = ?", yearID)
	}
	if teacherID := c.Query("teacher_id"); teacherID != "" {
		query = query.Where("teacher_id = ?", teacherID)
	}

	// Teachers only see their own budget rows
	if claims, err := middleware.GetCurrentClaims(c); err == nil && !claims.IsAdmin() {
		if claims.TeacherID == nil {
			return c.JSON(fiber.Map{"budgets": []budgetView{}})
		}
		query = query.Where("teacher_id = ?", *claims.TeacherID)
	}

	var budgets []models.RecoveryBudget
	if err := query.Preload("Teacher").Preload("SchoolYear").
		Order("teacher_id ASC").Find(&budgets).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch budgets",
		})
	}

	views := make([]budgetView, 0, len(budgets))
	for _, b := range budgets {
		views = append(views, toBudgetView(b))
	}
	return c.JSON(fiber.Map{"budgets": views})
}

// GetBudget returns one budget row with derived figures
func (bc *BudgetController) GetBudget(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid budget ID"})
	}

	var budget models.RecoveryBudget
	if err := database.DB.Preload("Teacher").Preload("SchoolYear").
		First(&budget, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Budget not found"})
	}
	if !middleware.CanActOnTeacher(c, budget.TeacherID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
	}

	return c.JSON(fiber.Map{"budget": toBudgetView(budget)})
}

type upsertBudgetRequest struct {
	TeacherID     uint `json:"teacher_id"`
	SchoolYearID  uint `json:"school_year_id"`
	MinutesWeekly int  `json:"minutes_weekly"`
	MinutesAnnual int  `json:"minutes_annual"`
	ModulesAnnual int  `json:"modules_annual"`
}

// CreateBudget creates a budget row for a teacher and school year (admin only)
func (bc *BudgetController) CreateBudget(c *fiber.Ctx) error {
	var req upsertBudgetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.TeacherID == 0 || req.SchoolYearID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "teacher_id and school_year_id are required"})
	}
	if req.MinutesAnnual < 0 || req.ModulesAnnual < 0 || req.MinutesWeekly < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Budget figures cannot be negative"})
	}

	budget := models.RecoveryBudget{
		TeacherID:     req.TeacherID,
		SchoolYearID:  req.SchoolYearID,
		MinutesWeekly: req.MinutesWeekly,
		MinutesAnnual: req.MinutesAnnual,
		ModulesAnnual: req.ModulesAnnual,
	}
	if err := database.DB.Create(&budget).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Budget already exists for this teacher and school year",
		})
	}

	middleware.LogActivity(c, "CREATE", "budgets", budget.ID, fiber.Map{
		"teacher_id":     budget.TeacherID,
		"school_year_id": budget.SchoolYearID,
	})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"budget": toBudgetView(budget)})
}

// UpdateBudget adjusts the allowance figures, leaving usage counters alone (admin only)
func (bc *BudgetController) UpdateBudget(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid budget ID"})
	}

	var budget models.RecoveryBudget
	if err := database.DB.First(&budget, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Budget not found"})
	}

	var req struct {
		MinutesWeekly *int `json:"minutes_weekly"`
		MinutesAnnual *int `json:"minutes_annual"`
		ModulesAnnual *int `json:"modules_annual"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	updates := map[string]interface{}{}
	if req.MinutesWeekly != nil {
		updates["minutes_weekly"] = *req.MinutesWeekly
	}
	if req.MinutesAnnual != nil {
		updates["minutes_annual"] = *req.MinutesAnnual
	}
	if req.ModulesAnnual != nil {
		updates["modules_annual"] = *req.ModulesAnnual
	}
	if len(updates) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Nothing to update"})
	}

	if err := database.DB.Model(&budget).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update budget"})
	}

	middleware.LogActivity(c, "UPDATE", "budgets", budget.ID, updates)

	return c.JSON(fiber.Map{"budget": toBudgetView(budget)})
}

// DeleteBudget removes a budget row (admin only)
func (bc *BudgetController) DeleteBudget(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid budget ID"})
	}

	var budget models.RecoveryBudget
	if err := database.DB.First(&budget, uint(id)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Budget not found"})
	}

	if err := database.DB.Delete(&budget).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete budget"})
	}

	middleware.LogActivity(c, "DELETE", "budgets", uint(id), nil)

	return c.JSON(fiber.Map{"message": "Budget deleted"})
}
