package services

import (
	"errors"
	"fmt"
	"time"

	"recuperi_go/models"

	"gorm.io/gorm"
)

// ConflictResult is what the detector reports for a candidate slot.
// Blocking means the same teacher already occupies the slot and the write
// must be refused. Warning means another teacher already booked the same
// class in that slot; the write may proceed.
type ConflictResult struct {
	Blocking *models.RecoveryActivity
	Warning  string
}

// ConflictDetector runs the pre-write scheduling checks. The storage-level
// unique index on (teacher_id, date, module_number) remains the
// authoritative guard against the read-then-write race; this detector
// exists to produce actionable messages before the insert is attempted.
type ConflictDetector struct {
	db *gorm.DB
}

func NewConflictDetector(db *gorm.DB) *ConflictDetector {
	return &ConflictDetector{db: db}
}

// Check inspects the activity store for collisions with the candidate
// (teacher, date, module, class). excludeID skips the activity being
// edited; pass 0 on create.
func (cd *ConflictDetector) Check(teacherID uint, date time.Time, moduleNumber int, className string, excludeID uint) (*ConflictResult, error) {
	result := &ConflictResult{}
	day := NormalizeDate(date)

	// Hard block: same teacher, same date, same module slot
	var blocking models.RecoveryActivity
	query := cd.db.Where("teacher_id = ? AND date = ? AND module_number = ?", teacherID, day, moduleNumber)
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.First(&blocking).Error
	if err == nil {
		result.Blocking = &blocking
		return result, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Soft warning: same class booked in that slot by any teacher
	if className != "" {
		var other models.RecoveryActivity
		query = cd.db.Preload("Teacher").
			Where("class_name = ? AND date = ? AND module_number = ?", className, day, moduleNumber)
		if excludeID != 0 {
			query = query.Where("id <> ?", excludeID)
		}
		err = query.First(&other).Error
		if err == nil {
			result.Warning = fmt.Sprintf(
				"class %s already has a recovery activity on %s, module %d (teacher %s)",
				className, day.Format("2006-01-02"), moduleNumber, other.Teacher.FullName())
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return result, nil
}

// NormalizeDate truncates a timestamp to its UTC calendar day. Every date
// written to or queried from the activity store goes through this so that
// slot comparisons are plain equality.
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
