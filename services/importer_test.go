package services

import (
	"errors"
	"testing"

	"recuperi_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var budgetHeader = []string{"Docente", "Minuti/Settimana", "Tesoretto Annuale (min)", "Moduli Annui (50min)", "Saldo (min)"}

var activityHeader = []string{"Docente", "Data", "Modulo", "Classe", "Tipologia", "Durata (min)", "Copresenza", "Titolo"}

func TestSplitTeacherName(t *testing.T) {
	surname, given, err := SplitTeacherName("Rossi Mario")
	require.NoError(t, err)
	assert.Equal(t, "Rossi", surname)
	assert.Equal(t, "Mario", given)

	// First token is the surname, everything else the given name
	surname, given, err = SplitTeacherName("  Rossi   Maria Luisa ")
	require.NoError(t, err)
	assert.Equal(t, "Rossi", surname)
	assert.Equal(t, "Maria Luisa", given)

	_, _, err = SplitTeacherName("Rossi")
	assert.Error(t, err)
	_, _, err = SplitTeacherName("   ")
	assert.Error(t, err)
}

func TestImportBudgetsCreatesTeachersAndBudgets(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{
		budgetHeader,
		{"Bianchi Anna", "50", "600", "12", "600"},
		{"Verdi Maria Luisa", "100", "1000", "20", "1000"},
		{"", "", "", "", ""},
	}
	result, err := svc.ImportBudgets(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Zero(t, result.Failed)
	assert.True(t, result.Success())

	var teacher models.Teacher
	require.NoError(t, db.Where("surname = ? AND given_name = ?", "Verdi", "Maria Luisa").First(&teacher).Error)

	var budget models.RecoveryBudget
	require.NoError(t, db.Where("teacher_id = ? AND school_year_id = ?", teacher.ID, f.Year.ID).First(&budget).Error)
	assert.Equal(t, 100, budget.MinutesWeekly)
	assert.Equal(t, 1000, budget.MinutesAnnual)
	assert.Equal(t, 20, budget.ModulesAnnual)
	assert.Zero(t, budget.MinutesUsed)
}

func TestImportBudgetsPreservesUsage(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	require.NoError(t, db.Model(&models.RecoveryBudget{}).Where("id = ?", f.Budget.ID).
		Updates(map[string]interface{}{"minutes_used": 150, "modules_used": 3}).Error)

	rows := [][]string{
		budgetHeader,
		{"Rossi Mario", "60", "800", "16", "800"},
	}
	result, err := svc.ImportBudgets(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	// Allocation refreshed, consumption untouched
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 800, budget.MinutesAnnual)
	assert.Equal(t, 16, budget.ModulesAnnual)
	assert.Equal(t, 60, budget.MinutesWeekly)
	assert.Equal(t, 150, budget.MinutesUsed)
	assert.Equal(t, 3, budget.ModulesUsed)

	// No duplicate teacher row was created for the existing name
	var teacherCount int64
	db.Model(&models.Teacher{}).Where("surname = ?", "Rossi").Count(&teacherCount)
	assert.Equal(t, int64(1), teacherCount)
}

func TestImportBudgetsMissingColumn(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{
		{"Docente", "Minuti/Settimana"},
		{"Rossi Mario", "50"},
	}
	_, err := svc.ImportBudgets(rows, f.Year.ID)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestImportBudgetsCollectsRowErrors(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{
		budgetHeader,
		{"Bianchi Anna", "50", "600", "12", "600"},
		{"SoloCognome", "50", "600", "12", "600"},
		{"Verdi Luca", "50", "abc", "12", "600"},
	}
	result, err := svc.ImportBudgets(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 2, result.Failed)
	assert.Len(t, result.Errors, 2)
	assert.False(t, result.Success())
}

func TestImportBudgetsUnknownSchoolYear(t *testing.T) {
	db := setupTestDB(t)
	seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{budgetHeader, {"Rossi Mario", "50", "600", "12", "600"}}
	_, err := svc.ImportBudgets(rows, 9999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestImportActivitiesWipesAndRebuilds(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	// Pre-existing state that the import must replace wholesale
	stale := models.RecoveryActivity{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(5),
		ModuleNumber:   1,
		ClassName:      "3A",
		Title:          "Vecchia",
		DurationMin:    50,
		ModulesEq:      1,
		Status:         models.ActivityStatusCompleted,
	}
	require.NoError(t, db.Create(&stale).Error)
	require.NoError(t, db.Model(&models.RecoveryBudget{}).Where("id = ?", f.Budget.ID).
		Updates(map[string]interface{}{"minutes_used": 50, "modules_used": 1}).Error)

	rows := [][]string{
		activityHeader,
		{"Rossi Mario", "15/01/2026", "2", "3A", "Recupero", "60", "", "Ripasso"},
		{"Rossi Mario", "2026-01-16", "3", "2B", "Recupero", "100", "", ""},
	}
	result, err := svc.ImportActivities(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 2, result.Imported)
	assert.Zero(t, result.Failed)

	var activities []models.RecoveryActivity
	require.NoError(t, db.Order("date ASC").Find(&activities).Error)
	require.Len(t, activities, 2)

	first := activities[0]
	assert.Equal(t, "2026-01-15", first.Date.Format("2006-01-02"))
	assert.Equal(t, 2, first.ModuleNumber)
	assert.Equal(t, models.ActivityStatusCompleted, first.Status)
	assert.Equal(t, "Ripasso", first.Title)
	// Import rounds down: 60 minutes is 1 module here, 2 interactively
	assert.Equal(t, 1, first.ModulesEq)
	assert.Equal(t, 2, ModulesForDuration(first.DurationMin))

	second := activities[1]
	assert.Equal(t, "Recupero", second.Title)
	assert.Equal(t, 2, second.ModulesEq)

	// Counters were zeroed, then rebuilt from the imported rows alone
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 160, budget.MinutesUsed)
	assert.Equal(t, 3, budget.ModulesUsed)
}

func TestImportActivitiesUnknownTeacher(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{
		activityHeader,
		{"Sconosciuto Mai", "15/01/2026", "2", "3A", "Recupero", "50", "", ""},
	}
	result, err := svc.ImportActivities(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Equal(t, 1, result.Failed)

	// The import never invents teachers
	var count int64
	db.Model(&models.Teacher{}).Where("surname = ?", "Sconosciuto").Count(&count)
	assert.Zero(t, count)
}

func TestImportActivitiesMissingBudgetWarns(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	noBudget := models.Teacher{Surname: "Neri", GivenName: "Paola"}
	require.NoError(t, db.Create(&noBudget).Error)

	rows := [][]string{
		activityHeader,
		{"Neri Paola", "15/01/2026", "2", "3A", "Recupero", "50", "", ""},
	}
	result, err := svc.ImportActivities(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Neri")
}

func TestImportActivitiesCoTeacherRequired(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{
		activityHeader,
		{"Rossi Mario", "15/01/2026", "2", "3A", "Copresenza", "50", "", ""},
		{"Rossi Mario", "15/01/2026", "3", "3A", "copresenza", "50", "Bianchi Anna", ""},
	}
	result, err := svc.ImportActivities(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Failed)

	var activity models.RecoveryActivity
	require.NoError(t, db.First(&activity).Error)
	assert.Equal(t, "Bianchi Anna", activity.CoTeacherName)
	// Type names match case-insensitively
	assert.Equal(t, f.Copresenza.ID, activity.RecoveryTypeID)
}

func TestImportActivitiesDuplicateSlot(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{
		activityHeader,
		{"Rossi Mario", "15/01/2026", "2", "3A", "Recupero", "50", "", ""},
		{"Rossi Mario", "15/01/2026", "2", "2B", "Recupero", "50", "", ""},
	}
	result, err := svc.ImportActivities(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "duplicate slot")

	// Only the first row was billed
	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Equal(t, 50, budget.MinutesUsed)
}

func TestImportActivitiesBadRows(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	rows := [][]string{
		activityHeader,
		{"Rossi Mario", "15-99-2026", "2", "3A", "Recupero", "50", "", ""},
		{"Rossi Mario", "15/01/2026", "11", "3A", "Recupero", "50", "", ""},
		{"Rossi Mario", "15/01/2026", "2", "", "Recupero", "50", "", ""},
		{"Rossi Mario", "15/01/2026", "2", "3A", "Inesistente", "50", "", ""},
		{"Rossi Mario", "15/01/2026", "2", "3A", "Recupero", "0", "", ""},
	}
	result, err := svc.ImportActivities(rows, f.Year.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Imported)
	assert.Equal(t, 5, result.Failed)
	assert.Len(t, result.Errors, 5)
}

func TestClearAllActivities(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewImportService(db)

	otherYear := models.SchoolYear{
		Name:      "2024/2025",
		StartDate: testDate(1).AddDate(-1, 8, 0),
		EndDate:   testDate(1).AddDate(0, 5, 0),
	}
	require.NoError(t, db.Create(&otherYear).Error)

	for i, yearID := range []uint{f.Year.ID, otherYear.ID} {
		require.NoError(t, db.Create(&models.RecoveryActivity{
			TeacherID:      f.Teacher.ID,
			SchoolYearID:   yearID,
			RecoveryTypeID: f.Recupero.ID,
			Date:           testDate(10 + i),
			ModuleNumber:   1,
			ClassName:      "3A",
			DurationMin:    50,
			ModulesEq:      1,
			Status:         models.ActivityStatusCompleted,
		}).Error)
	}
	require.NoError(t, db.Model(&models.RecoveryBudget{}).Where("id = ?", f.Budget.ID).
		Updates(map[string]interface{}{"minutes_used": 100, "modules_used": 2}).Error)

	deleted, err := svc.ClearAllActivities()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var count int64
	db.Model(&models.RecoveryActivity{}).Count(&count)
	assert.Zero(t, count)

	budget := reloadBudget(t, db, f.Budget.ID)
	assert.Zero(t, budget.MinutesUsed)
	assert.Zero(t, budget.ModulesUsed)
}
