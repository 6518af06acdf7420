package services

import (
	"errors"

	"recuperi_go/models"

	"gorm.io/gorm"
)

// SchoolYearService owns the single-writer invariant: exactly one school
// year is active at a time. Activation is the only writer of the is_active
// flag, so callers never have to reason about deactivating siblings.
type SchoolYearService struct {
	db *gorm.DB
}

func NewSchoolYearService(db *gorm.DB) *SchoolYearService {
	return &SchoolYearService{db: db}
}

// Activate marks one year active and every other inactive, inside a single
// transaction.
func (s *SchoolYearService) Activate(id uint) (*models.SchoolYear, error) {
	var year models.SchoolYear
	if err := s.db.First(&year, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "school year", ID: id}
		}
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.SchoolYear{}).Where("id <> ?", id).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.SchoolYear{}).Where("id = ?", id).Update("is_active", true).Error
	})
	if err != nil {
		return nil, err
	}

	year.IsActive = true
	return &year, nil
}

// Active returns the currently active school year.
func (s *SchoolYearService) Active() (*models.SchoolYear, error) {
	var year models.SchoolYear
	if err := s.db.Where("is_active = ?", true).First(&year).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "active school year"}
		}
		return nil, err
	}
	return &year, nil
}

// Delete removes a school year, refusing while budgets still reference it.
func (s *SchoolYearService) Delete(id uint) error {
	var year models.SchoolYear
	if err := s.db.First(&year, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entity: "school year", ID: id}
		}
		return err
	}

	var budgetCount int64
	if err := s.db.Model(&models.RecoveryBudget{}).Where("school_year_id = ?", id).Count(&budgetCount).Error; err != nil {
		return err
	}
	if budgetCount > 0 {
		return ErrYearInUse
	}

	return s.db.Delete(&year).Error
}
