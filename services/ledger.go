package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"recuperi_go/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ModuleMinutes is the length of one teaching module.
const ModuleMinutes = 50

// MaxModuleNumber is the last slot index of a school day.
const MaxModuleNumber = 10

// LedgerService orchestrates activity writes together with the matching
// budget debit or credit. The store only guarantees per-statement
// atomicity, so each operation is a small saga: write the activity, apply
// the budget delta, and compensate (delete the activity) if the delta
// fails.
type LedgerService struct {
	db        *gorm.DB
	conflicts *ConflictDetector
}

func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db, conflicts: NewConflictDetector(db)}
}

// CreateActivityInput carries everything needed to book a recovery slot.
// DurationMin may be 0, in which case the recovery type's default is used.
type CreateActivityInput struct {
	TeacherID      uint
	SchoolYearID   uint
	RecoveryTypeID uint
	Date           time.Time
	ModuleNumber   int
	ClassName      string
	Title          string
	DurationMin    int
	CoTeacherName  string
}

// UpdateActivityInput is a partial patch; nil fields are left untouched.
type UpdateActivityInput struct {
	RecoveryTypeID *uint
	Date           *time.Time
	ModuleNumber   *int
	ClassName      *string
	Title          *string
	DurationMin    *int
	CoTeacherName  *string
}

// ModulesForDuration converts minutes to module equivalents for the
// interactive paths, rounding up: a 60-minute activity costs 2 modules.
// The bulk import intentionally rounds down instead (see ImportService).
func ModulesForDuration(minutes int) int {
	if minutes <= 0 {
		return 0
	}
	return (minutes + ModuleMinutes - 1) / ModuleMinutes
}

// CreateActivity books a recovery slot and debits the teacher's budget.
//
// Order matters: budget admission check, conflict check, activity insert,
// budget debit. If the debit fails the freshly inserted activity is
// deleted again so the ledger never counts an activity without its debit.
// The returned string is the soft class-collision warning, empty when
// there is none.
func (s *LedgerService) CreateActivity(in CreateActivityInput) (*models.RecoveryActivity, string, error) {
	if err := s.validateSlot(in.ModuleNumber, in.ClassName); err != nil {
		return nil, "", err
	}

	var recoveryType models.RecoveryType
	if err := s.db.First(&recoveryType, in.RecoveryTypeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", &NotFoundError{Entity: "recovery type", ID: in.RecoveryTypeID}
		}
		return nil, "", err
	}
	if recoveryType.RequiresCoTeacher && strings.TrimSpace(in.CoTeacherName) == "" {
		return nil, "", &ValidationError{Field: "co_teacher_name", Reason: "required for recovery type " + recoveryType.Name}
	}

	var budget models.RecoveryBudget
	err := s.db.Where("teacher_id = ? AND school_year_id = ?", in.TeacherID, in.SchoolYearID).First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", &NotFoundError{Entity: "budget", ID: in.TeacherID}
		}
		return nil, "", err
	}

	// Coarse admission check: refuses only once the module allocation is
	// fully consumed, it does not pre-count the candidate's own cost.
	if budget.ModulesUsed >= budget.ModulesAnnual {
		return nil, "", &BudgetExhaustedError{
			TeacherID:        in.TeacherID,
			ModulesAnnual:    budget.ModulesAnnual,
			ModulesUsed:      budget.ModulesUsed,
			MinutesRemaining: budget.MinutesRemaining(),
		}
	}

	day := NormalizeDate(in.Date)
	check, err := s.conflicts.Check(in.TeacherID, day, in.ModuleNumber, in.ClassName, 0)
	if err != nil {
		return nil, "", err
	}
	if check.Blocking != nil {
		return nil, "", &ConflictError{
			ActivityID:   check.Blocking.ID,
			Date:         day.Format("2006-01-02"),
			ModuleNumber: in.ModuleNumber,
		}
	}

	duration := in.DurationMin
	if duration <= 0 {
		duration = recoveryType.DefaultDurationMin
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = recoveryType.Name
	}

	activity := models.RecoveryActivity{
		TeacherID:      in.TeacherID,
		SchoolYearID:   in.SchoolYearID,
		RecoveryTypeID: in.RecoveryTypeID,
		Date:           day,
		ModuleNumber:   in.ModuleNumber,
		ClassName:      strings.TrimSpace(in.ClassName),
		Title:          title,
		DurationMin:    duration,
		ModulesEq:      ModulesForDuration(duration),
		Status:         models.ActivityStatusPlanned,
		CoTeacherName:  strings.TrimSpace(in.CoTeacherName),
	}

	if err := s.db.Create(&activity).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// Lost the race between the pre-check and the insert; the
			// unique index caught it.
			return nil, "", &ConflictError{Date: day.Format("2006-01-02"), ModuleNumber: in.ModuleNumber}
		}
		return nil, "", err
	}

	if err := s.ApplyDelta(budget.ID, duration, activity.ModulesEq); err != nil {
		// Compensating rollback: the debit failed, so the activity must
		// not survive either.
		if delErr := s.db.Delete(&models.RecoveryActivity{}, activity.ID).Error; delErr != nil {
			logrus.WithError(delErr).WithField("activity_id", activity.ID).
				Error("compensating delete failed; ledger counters may undercount usage")
		}
		return nil, "", fmt.Errorf("budget debit failed: %w", err)
	}

	loaded, loadErr := s.GetActivity(activity.ID)
	if loadErr != nil {
		return &activity, check.Warning, nil
	}
	return loaded, check.Warning, nil
}

// UpdateActivity applies a partial edit to a planned activity. Duration
// and type changes are not re-billed against the budget; only the original
// booking debits it. Conflicts are re-checked only when the slot (date or
// module number) actually moves.
func (s *LedgerService) UpdateActivity(id uint, patch UpdateActivityInput) (*models.RecoveryActivity, string, error) {
	var activity models.RecoveryActivity
	if err := s.db.First(&activity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", &NotFoundError{Entity: "activity", ID: id}
		}
		return nil, "", err
	}
	if err := EnsureMutable(&activity); err != nil {
		return nil, "", err
	}

	slotChanged := false
	if patch.Date != nil {
		day := NormalizeDate(*patch.Date)
		if !day.Equal(activity.Date) {
			activity.Date = day
			slotChanged = true
		}
	}
	if patch.ModuleNumber != nil && *patch.ModuleNumber != activity.ModuleNumber {
		activity.ModuleNumber = *patch.ModuleNumber
		slotChanged = true
	}
	if patch.ClassName != nil {
		activity.ClassName = strings.TrimSpace(*patch.ClassName)
	}
	if patch.Title != nil {
		activity.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.CoTeacherName != nil {
		activity.CoTeacherName = strings.TrimSpace(*patch.CoTeacherName)
	}
	if patch.DurationMin != nil && *patch.DurationMin > 0 {
		activity.DurationMin = *patch.DurationMin
		activity.ModulesEq = ModulesForDuration(*patch.DurationMin)
	}
	if patch.RecoveryTypeID != nil {
		var recoveryType models.RecoveryType
		if err := s.db.First(&recoveryType, *patch.RecoveryTypeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", &NotFoundError{Entity: "recovery type", ID: *patch.RecoveryTypeID}
			}
			return nil, "", err
		}
		if recoveryType.RequiresCoTeacher && strings.TrimSpace(activity.CoTeacherName) == "" {
			return nil, "", &ValidationError{Field: "co_teacher_name", Reason: "required for recovery type " + recoveryType.Name}
		}
		activity.RecoveryTypeID = *patch.RecoveryTypeID
	}

	if err := s.validateSlot(activity.ModuleNumber, activity.ClassName); err != nil {
		return nil, "", err
	}

	warning := ""
	if slotChanged {
		check, err := s.conflicts.Check(activity.TeacherID, activity.Date, activity.ModuleNumber, activity.ClassName, activity.ID)
		if err != nil {
			return nil, "", err
		}
		if check.Blocking != nil {
			return nil, "", &ConflictError{
				ActivityID:   check.Blocking.ID,
				Date:         activity.Date.Format("2006-01-02"),
				ModuleNumber: activity.ModuleNumber,
			}
		}
		warning = check.Warning
	}

	if err := s.db.Save(&activity).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, "", &ConflictError{Date: activity.Date.Format("2006-01-02"), ModuleNumber: activity.ModuleNumber}
		}
		return nil, "", err
	}

	loaded, loadErr := s.GetActivity(activity.ID)
	if loadErr != nil {
		return &activity, warning, nil
	}
	return loaded, warning, nil
}

// DeleteActivity removes a planned activity and credits its cost back to
// the budget. When the matching budget cannot be found or credited the
// deletion still goes through and the condition is reported as a warning:
// completing the user's intent wins over strict ledger bookkeeping.
func (s *LedgerService) DeleteActivity(id uint) (string, error) {
	var activity models.RecoveryActivity
	if err := s.db.First(&activity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", &NotFoundError{Entity: "activity", ID: id}
		}
		return "", err
	}
	if err := EnsureMutable(&activity); err != nil {
		return "", err
	}

	var budget models.RecoveryBudget
	budgetErr := s.db.Where("teacher_id = ? AND school_year_id = ?", activity.TeacherID, activity.SchoolYearID).First(&budget).Error

	if err := s.db.Delete(&models.RecoveryActivity{}, activity.ID).Error; err != nil {
		return "", err
	}

	if budgetErr != nil {
		logrus.WithFields(logrus.Fields{
			"activity_id": activity.ID,
			"teacher_id":  activity.TeacherID,
		}).Warn("budget not found while deleting activity; usage counters not restored")
		return "activity deleted, but its budget was not found: usage counters were not restored", nil
	}

	if err := s.ApplyDelta(budget.ID, -activity.DurationMin, -activity.ModulesEq); err != nil {
		logrus.WithError(err).WithField("budget_id", budget.ID).
			Warn("budget credit failed after activity deletion")
		return "activity deleted, but restoring the budget failed: usage counters may overcount", nil
	}

	return "", nil
}

// ToggleCompletion flips the activity status. It never touches the budget:
// planned and completed activities both count as consumed. Toggling to the
// current state is an idempotent no-op.
func (s *LedgerService) ToggleCompletion(id uint, completed bool) (*models.RecoveryActivity, error) {
	var activity models.RecoveryActivity
	if err := s.db.First(&activity, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "activity", ID: id}
		}
		return nil, err
	}

	target := models.ActivityStatusPlanned
	if completed {
		target = models.ActivityStatusCompleted
	}
	if activity.Status == target {
		return &activity, nil
	}
	if !CanTransition(activity.Status, target) {
		return nil, &ValidationError{Field: "status", Reason: "invalid transition"}
	}

	if err := s.db.Model(&activity).Update("status", target).Error; err != nil {
		return nil, err
	}
	activity.Status = target
	return &activity, nil
}

// GetActivity loads an activity with its display relationships.
func (s *LedgerService) GetActivity(id uint) (*models.RecoveryActivity, error) {
	var activity models.RecoveryActivity
	err := s.db.Preload("Teacher").Preload("RecoveryType").Preload("SchoolYear").First(&activity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "activity", ID: id}
		}
		return nil, err
	}
	return &activity, nil
}

// ApplyDelta adjusts a budget's usage counters with atomic SQL increments,
// never fetch-then-overwrite, so concurrent bookings cannot lose updates.
// Negative deltas (credits) are floored at zero with a follow-up clamp
// statement rather than allowed to go negative.
func (s *LedgerService) ApplyDelta(budgetID uint, minutesDelta, modulesDelta int) error {
	if minutesDelta == 0 && modulesDelta == 0 {
		return nil
	}

	res := s.db.Model(&models.RecoveryBudget{}).Where("id = ?", budgetID).
		Updates(map[string]interface{}{
			"minutes_used": gorm.Expr("minutes_used + ?", minutesDelta),
			"modules_used": gorm.Expr("modules_used + ?", modulesDelta),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Entity: "budget", ID: budgetID}
	}

	if minutesDelta < 0 || modulesDelta < 0 {
		if err := s.db.Model(&models.RecoveryBudget{}).
			Where("id = ? AND minutes_used < 0", budgetID).
			Update("minutes_used", 0).Error; err != nil {
			return err
		}
		if err := s.db.Model(&models.RecoveryBudget{}).
			Where("id = ? AND modules_used < 0", budgetID).
			Update("modules_used", 0).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *LedgerService) validateSlot(moduleNumber int, className string) error {
	if moduleNumber < 1 || moduleNumber > MaxModuleNumber {
		return &ValidationError{Field: "module_number", Reason: fmt.Sprintf("must be between 1 and %d", MaxModuleNumber)}
	}
	if strings.TrimSpace(className) == "" {
		return &ValidationError{Field: "class_name", Reason: "required"}
	}
	return nil
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") || strings.Contains(msg, "UNIQUE constraint failed")
}
