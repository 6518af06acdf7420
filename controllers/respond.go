package controllers

import (
	"errors"

	"recuperi_go/services"

	"github.com/gofiber/fiber/v2"
)

// handleServiceError maps ledger error sentinels to HTTP responses,
// attaching the typed context (conflicting activity id, remaining budget)
// the caller needs to act.
func handleServiceError(c *fiber.Ctx, err error) error {
	var conflictErr *services.ConflictError
	if errors.As(err, &conflictErr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":                  err.Error(),
			"conflicting_activity":   conflictErr.ActivityID,
			"conflict_date":          conflictErr.Date,
			"conflict_module_number": conflictErr.ModuleNumber,
		})
	}

	var exhaustedErr *services.BudgetExhaustedError
	if errors.As(err, &exhaustedErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":             err.Error(),
			"modules_annual":    exhaustedErr.ModulesAnnual,
			"modules_used":      exhaustedErr.ModulesUsed,
			"minutes_remaining": exhaustedErr.MinutesRemaining,
		})
	}

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrImmutable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrSchedulingConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, services.ErrYearInUse):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
