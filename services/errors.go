package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ledger engine. Controllers map these to HTTP
// statuses; use errors.Is to test, errors.As to get the typed context.
var (
	// ErrNotFound is returned when a teacher, budget, activity, school year
	// or recovery type referenced by an operation does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBudgetExhausted is returned when a teacher has no modules remaining
	// for the school year.
	ErrBudgetExhausted = errors.New("budget exhausted")

	// ErrSchedulingConflict is returned when the teacher already has an
	// activity on the same date and module slot.
	ErrSchedulingConflict = errors.New("scheduling conflict")

	// ErrImmutable is returned when a mutation targets a completed activity.
	ErrImmutable = errors.New("completed activity is immutable")

	// ErrValidation is returned for malformed payloads or import rows.
	ErrValidation = errors.New("validation error")

	// ErrYearInUse is returned when deleting a school year still referenced
	// by budgets.
	ErrYearInUse = errors.New("school year has budgets")
)

// NotFoundError identifies which entity was missing.
type NotFoundError struct {
	Entity string
	ID     uint
	Name   string
}

func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %q not found", e.Entity, e.Name)
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// BudgetExhaustedError carries the remaining figures so the caller can act.
type BudgetExhaustedError struct {
	TeacherID        uint
	ModulesAnnual    int
	ModulesUsed      int
	MinutesRemaining int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("recovery budget exhausted: %d/%d modules used", e.ModulesUsed, e.ModulesAnnual)
}

func (e *BudgetExhaustedError) Unwrap() error { return ErrBudgetExhausted }

// ConflictError identifies the activity blocking the write.
type ConflictError struct {
	ActivityID   uint
	Date         string
	ModuleNumber int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("teacher already has activity %d on %s module %d", e.ActivityID, e.Date, e.ModuleNumber)
}

func (e *ConflictError) Unwrap() error { return ErrSchedulingConflict }

// ValidationError points at the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
