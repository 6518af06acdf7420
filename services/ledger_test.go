package services

import (
	"errors"
	"testing"

	"recuperi_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestModulesForDuration(t *testing.T) {
	cases := []struct {
		minutes int
		want    int
	}{
		{0, 0},
		{-10, 0},
		{1, 1},
		{49, 1},
		{50, 1},
		{51, 2},
		{60, 2},
		{100, 2},
		{101, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ModulesForDuration(tc.minutes), "minutes=%d", tc.minutes)
	}
}

func TestCreateActivityDebitsBudget(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, warning, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		Title:          "Recupero matematica",
		DurationMin:    60,
	})
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, models.ActivityStatusPlanned, activity.Status)
	assert.Equal(t, 60, activity.DurationMin)
	assert.Equal(t, 2, activity.ModulesEq)

	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 60, budget.MinutesUsed)
	assert.Equal(t, 2, budget.ModulesUsed)
	assert.Equal(t, 440, budget.MinutesRemaining())
	assert.Equal(t, 8, budget.ModulesRemaining())
}

func TestCreateActivityRollsBackWhenDebitFails(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	// Drop the budget row while the activity insert commits, after the
	// admission check has already seen it. The debit then matches no row
	// and the freshly inserted activity must not survive.
	err := db.Callback().Create().After("gorm:create").Register("drop_budget_mid_booking", func(tx *gorm.DB) {
		if tx.Statement.Table != "recovery_activities" {
			return
		}
		tx.Session(&gorm.Session{NewDB: true}).Exec("DELETE FROM recovery_budgets WHERE id = ?", f.Budget.ID)
	})
	require.NoError(t, err)

	_, _, err = svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    60,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	var count int64
	require.NoError(t, db.Model(&models.RecoveryActivity{}).Count(&count).Error)
	assert.Zero(t, count, "activity should be deleted when its debit fails")
}

func TestCreateActivityDefaultsFromType(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   1,
		ClassName:      "2B",
	})
	require.NoError(t, err)
	assert.Equal(t, f.Recupero.DefaultDurationMin, activity.DurationMin)
	assert.Equal(t, f.Recupero.Name, activity.Title)
	assert.Equal(t, 1, activity.ModulesEq)
}

func TestCreateActivityBlockingConflict(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	first, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	_, _, err = svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "5C",
		DurationMin:    50,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchedulingConflict))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.ActivityID)

	// The refused booking must not have been billed
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 50, budget.MinutesUsed)
	assert.Equal(t, 1, budget.ModulesUsed)
}

func TestCreateActivityClassWarning(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	other := models.Teacher{Surname: "Bianchi", GivenName: "Anna"}
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Create(&models.RecoveryBudget{
		TeacherID:     other.ID,
		SchoolYearID:  f.Year.ID,
		MinutesAnnual: 500,
		ModulesAnnual: 10,
	}).Error)

	_, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	// Different teacher, same class and slot: booked, but with a warning
	activity, warning, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      other.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)
	require.NotNil(t, activity)
	assert.Contains(t, warning, "3A")
	assert.Contains(t, warning, "Rossi")
}

func TestCreateActivityBudgetExhausted(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	require.NoError(t, db.Model(&models.RecoveryBudget{}).Where("id = ?", f.Budget.ID).
		Updates(map[string]interface{}{"minutes_used": 500, "modules_used": 10}).Error)

	_, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   1,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBudgetExhausted))

	var exhausted *BudgetExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, 10, exhausted.ModulesUsed)
	assert.Equal(t, 10, exhausted.ModulesAnnual)

	// Nothing written, nothing billed
	var count int64
	db.Model(&models.RecoveryActivity{}).Count(&count)
	assert.Zero(t, count)
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 500, budget.MinutesUsed)
	assert.Equal(t, 10, budget.ModulesUsed)
}

func TestCreateActivityExhaustionBoundary(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	require.NoError(t, db.Model(&models.RecoveryBudget{}).Where("id = ?", f.Budget.ID).
		Update("modules_annual", 2).Error)

	for day := 1; day <= 2; day++ {
		_, _, err := svc.CreateActivity(CreateActivityInput{
			TeacherID:      f.Teacher.ID,
			SchoolYearID:   f.Year.ID,
			RecoveryTypeID: f.Recupero.ID,
			Date:           testDate(day),
			ModuleNumber:   1,
			ClassName:      "3A",
			DurationMin:    50,
		})
		require.NoError(t, err)
	}

	// Allocation fully consumed: the next booking is refused
	_, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(3),
		ModuleNumber:   1,
		ClassName:      "3A",
		DurationMin:    50,
	})
	assert.True(t, errors.Is(err, ErrBudgetExhausted))

	var count int64
	db.Model(&models.RecoveryActivity{}).Count(&count)
	assert.Equal(t, int64(2), count)
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 100, budget.MinutesUsed)
	assert.Equal(t, 2, budget.ModulesUsed)
}

func TestCreateActivityCoTeacherRequired(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	in := CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Copresenza.ID,
		Date:           testDate(12),
		ModuleNumber:   2,
		ClassName:      "1A",
		DurationMin:    50,
	}
	_, _, err := svc.CreateActivity(in)
	assert.True(t, errors.Is(err, ErrValidation))

	in.CoTeacherName = "Verdi Luca"
	activity, _, err := svc.CreateActivity(in)
	require.NoError(t, err)
	assert.Equal(t, "Verdi Luca", activity.CoTeacherName)
}

func TestCreateActivityValidation(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	base := CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ClassName:      "3A",
		DurationMin:    50,
	}

	for _, module := range []int{0, -1, 11} {
		in := base
		in.ModuleNumber = module
		_, _, err := svc.CreateActivity(in)
		assert.True(t, errors.Is(err, ErrValidation), "module=%d", module)
	}

	in := base
	in.ModuleNumber = 1
	in.ClassName = "   "
	_, _, err := svc.CreateActivity(in)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestCreateActivityMissingBudget(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	orphan := models.Teacher{Surname: "Neri", GivenName: "Paola"}
	require.NoError(t, db.Create(&orphan).Error)

	_, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      orphan.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   1,
		ClassName:      "3A",
		DurationMin:    50,
	})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateActivityDoesNotRebill(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	newDuration := 100
	updated, warning, err := svc.UpdateActivity(activity.ID, UpdateActivityInput{
		DurationMin: &newDuration,
	})
	require.NoError(t, err)
	assert.Empty(t, warning)
	assert.Equal(t, 100, updated.DurationMin)
	assert.Equal(t, 2, updated.ModulesEq)

	// Only the original booking debits the budget
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 50, budget.MinutesUsed)
	assert.Equal(t, 1, budget.ModulesUsed)
}

func TestUpdateActivitySlotConflict(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	first, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	second, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   4,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	module := 3
	_, _, err = svc.UpdateActivity(second.ID, UpdateActivityInput{ModuleNumber: &module})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchedulingConflict))

	var conflict *ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.ActivityID)
}

func TestUpdateActivitySameSlotNoConflictCheck(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	// Editing the title without moving the slot never collides with itself
	title := "Ripasso verbi"
	updated, _, err := svc.UpdateActivity(activity.ID, UpdateActivityInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Ripasso verbi", updated.Title)
}

func TestUpdateCompletedRejected(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	_, err = svc.ToggleCompletion(activity.ID, true)
	require.NoError(t, err)

	title := "x"
	_, _, err = svc.UpdateActivity(activity.ID, UpdateActivityInput{Title: &title})
	assert.True(t, errors.Is(err, ErrImmutable))

	_, err = svc.DeleteActivity(activity.ID)
	assert.True(t, errors.Is(err, ErrImmutable))

	// Toggling back to planned unlocks the record again
	_, err = svc.ToggleCompletion(activity.ID, false)
	require.NoError(t, err)
	_, _, err = svc.UpdateActivity(activity.ID, UpdateActivityInput{Title: &title})
	assert.NoError(t, err)
}

func TestDeleteActivityRefundsBudget(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    60,
	})
	require.NoError(t, err)

	warning, err := svc.DeleteActivity(activity.ID)
	require.NoError(t, err)
	assert.Empty(t, warning)

	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Zero(t, budget.MinutesUsed)
	assert.Zero(t, budget.ModulesUsed)

	_, err = svc.GetActivity(activity.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteActivityMissingBudgetStillDeletes(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	require.NoError(t, db.Unscoped().Delete(&models.RecoveryBudget{}, f.Budget.ID).Error)

	warning, err := svc.DeleteActivity(activity.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, warning)

	_, err = svc.GetActivity(activity.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestToggleCompletionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	activity, _, err := svc.CreateActivity(CreateActivityInput{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		DurationMin:    50,
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		toggled, err := svc.ToggleCompletion(activity.ID, true)
		require.NoError(t, err)
		assert.Equal(t, models.ActivityStatusCompleted, toggled.Status)
	}

	// Completion never touches the budget
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 50, budget.MinutesUsed)
	assert.Equal(t, 1, budget.ModulesUsed)
}

func TestApplyDeltaClampsAtZero(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewLedgerService(db)

	require.NoError(t, svc.ApplyDelta(f.Budget.ID, 10, 1))
	require.NoError(t, svc.ApplyDelta(f.Budget.ID, -100, -5))

	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Zero(t, budget.MinutesUsed)
	assert.Zero(t, budget.ModulesUsed)
}

func TestApplyDeltaMissingBudget(t *testing.T) {
	db := setupTestDB(t)
	seedFixtures(t, db)
	svc := NewLedgerService(db)

	err := svc.ApplyDelta(9999, 50, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}
