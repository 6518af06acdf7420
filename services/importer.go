package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"recuperi_go/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ImportResult reports a bulk reconciliation outcome. A batch with some
// failed rows is still a success at the HTTP level (207-style): the caller
// gets the per-row errors and decides what to re-submit.
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Deleted  int      `json:"deleted"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Success is true when every row landed.
func (r *ImportResult) Success() bool { return r.Failed == 0 }

// ImportService reconciles tabular imports against the ledger. It reuses
// the ledger's ApplyDelta debit primitive so import rows and interactive
// bookings account identically.
type ImportService struct {
	db     *gorm.DB
	ledger *LedgerService
}

func NewImportService(db *gorm.DB) *ImportService {
	return &ImportService{db: db, ledger: NewLedgerService(db)}
}

// Budget CSV header: Docente;Minuti/Settimana;Tesoretto Annuale (min);Moduli Annui (50min);Saldo (min)
// Docente is "Cognome Nome": first token is the surname, the rest the given name.

// ImportBudgets upserts one budget per row for the given school year.
// Teachers are found or created by case-insensitive (surname, given name).
// Existing budgets keep their used counters; only allocations are updated.
// Row failures are collected, never fatal to the batch.
func (s *ImportService) ImportBudgets(rows [][]string, schoolYearID uint) (*ImportResult, error) {
	if err := s.ensureSchoolYear(schoolYearID); err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, &ValidationError{Field: "file", Reason: "no data rows found"}
	}

	col := buildColumnIndex(rows[0])
	for _, required := range []string{"docente", "tesoretto annuale (min)", "moduli annui (50min)"} {
		if _, ok := col[required]; !ok {
			return nil, &ValidationError{Field: "file", Reason: "missing column: " + required}
		}
	}

	result := &ImportResult{}
	for i := 1; i < len(rows); i++ {
		if isRowEmpty(rows[i]) {
			continue
		}
		if err := s.importBudgetRow(rows[i], col, schoolYearID, i+1); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Imported++
	}
	return result, nil
}

func (s *ImportService) importBudgetRow(row []string, col map[string]int, schoolYearID uint, rowNum int) error {
	surname, givenName, err := SplitTeacherName(cellValue(row, col, "docente"))
	if err != nil {
		return fmt.Errorf("row %d: %v", rowNum, err)
	}

	minutesAnnual, err := parsePositiveInt(cellValue(row, col, "tesoretto annuale (min)"))
	if err != nil {
		return fmt.Errorf("row %d: invalid annual minutes: %v", rowNum, err)
	}
	modulesAnnual, err := parsePositiveInt(cellValue(row, col, "moduli annui (50min)"))
	if err != nil {
		return fmt.Errorf("row %d: invalid annual modules: %v", rowNum, err)
	}
	minutesWeekly := 0
	if raw := cellValue(row, col, "minuti/settimana"); raw != "" {
		if minutesWeekly, err = parsePositiveInt(raw); err != nil {
			return fmt.Errorf("row %d: invalid weekly minutes: %v", rowNum, err)
		}
	}

	teacher, err := s.findOrCreateTeacher(surname, givenName)
	if err != nil {
		return fmt.Errorf("row %d: %v", rowNum, err)
	}

	var budget models.RecoveryBudget
	err = s.db.Where("teacher_id = ? AND school_year_id = ?", teacher.ID, schoolYearID).First(&budget).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		budget = models.RecoveryBudget{
			TeacherID:     teacher.ID,
			SchoolYearID:  schoolYearID,
			MinutesWeekly: minutesWeekly,
			MinutesAnnual: minutesAnnual,
			ModulesAnnual: modulesAnnual,
		}
		if err := s.db.Create(&budget).Error; err != nil {
			return fmt.Errorf("row %d: create budget for %s: %v", rowNum, teacher.FullName(), err)
		}
	case err != nil:
		return fmt.Errorf("row %d: %v", rowNum, err)
	default:
		// Update path: refresh the allocation, preserve consumption.
		updates := map[string]interface{}{
			"minutes_weekly": minutesWeekly,
			"minutes_annual": minutesAnnual,
			"modules_annual": modulesAnnual,
		}
		if err := s.db.Model(&budget).Updates(updates).Error; err != nil {
			return fmt.Errorf("row %d: update budget for %s: %v", rowNum, teacher.FullName(), err)
		}
	}
	return nil
}

// Activity file columns: Docente;Data;Modulo;Classe;Tipologia;Durata (min);Copresenza;Titolo

// ImportActivities is a destructive full reset for the school year: every
// existing activity is deleted and every budget's used counters are zeroed
// before a single row is processed. A crash mid-import therefore leaves
// the year partially rebuilt; re-running the import is the recovery path.
// Imported activities land directly in completed state, and module
// equivalents round down (floor), unlike the interactive create path.
func (s *ImportService) ImportActivities(rows [][]string, schoolYearID uint) (*ImportResult, error) {
	if err := s.ensureSchoolYear(schoolYearID); err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, &ValidationError{Field: "file", Reason: "no data rows found"}
	}

	col := buildColumnIndex(rows[0])
	for _, required := range []string{"docente", "data", "modulo", "classe", "tipologia", "durata (min)"} {
		if _, ok := col[required]; !ok {
			return nil, &ValidationError{Field: "file", Reason: "missing column: " + required}
		}
	}

	result := &ImportResult{}

	deleted := s.db.Where("school_year_id = ?", schoolYearID).Delete(&models.RecoveryActivity{})
	if deleted.Error != nil {
		return nil, deleted.Error
	}
	result.Deleted = int(deleted.RowsAffected)

	if err := s.db.Model(&models.RecoveryBudget{}).
		Where("school_year_id = ?", schoolYearID).
		Updates(map[string]interface{}{"minutes_used": 0, "modules_used": 0}).Error; err != nil {
		return nil, err
	}

	for i := 1; i < len(rows); i++ {
		if isRowEmpty(rows[i]) {
			continue
		}
		warning, err := s.importActivityRow(rows[i], col, schoolYearID, i+1)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}
		result.Imported++
	}

	logrus.WithFields(logrus.Fields{
		"school_year_id": schoolYearID,
		"deleted":        result.Deleted,
		"imported":       result.Imported,
		"failed":         result.Failed,
	}).Info("activity import completed")

	return result, nil
}

func (s *ImportService) importActivityRow(row []string, col map[string]int, schoolYearID uint, rowNum int) (string, error) {
	surname, givenName, err := SplitTeacherName(cellValue(row, col, "docente"))
	if err != nil {
		return "", fmt.Errorf("row %d: %v", rowNum, err)
	}
	teacher, err := s.findTeacher(surname, givenName)
	if err != nil {
		return "", fmt.Errorf("row %d: %v", rowNum, err)
	}

	date, err := parseImportDate(cellValue(row, col, "data"))
	if err != nil {
		return "", fmt.Errorf("row %d: invalid date: %v", rowNum, err)
	}
	moduleNumber, err := strconv.Atoi(cellValue(row, col, "modulo"))
	if err != nil || moduleNumber < 1 || moduleNumber > MaxModuleNumber {
		return "", fmt.Errorf("row %d: invalid module number %q", rowNum, cellValue(row, col, "modulo"))
	}
	className := cellValue(row, col, "classe")
	if className == "" {
		return "", fmt.Errorf("row %d: missing class", rowNum)
	}
	duration, err := parsePositiveInt(cellValue(row, col, "durata (min)"))
	if err != nil || duration == 0 {
		return "", fmt.Errorf("row %d: invalid duration %q", rowNum, cellValue(row, col, "durata (min)"))
	}

	typeName := cellValue(row, col, "tipologia")
	var recoveryType models.RecoveryType
	if err := s.db.Where("LOWER(name) = ?", strings.ToLower(typeName)).First(&recoveryType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("row %d: unknown recovery type %q", rowNum, typeName)
		}
		return "", fmt.Errorf("row %d: %v", rowNum, err)
	}
	coTeacher := cellValue(row, col, "copresenza")
	if recoveryType.RequiresCoTeacher && coTeacher == "" {
		return "", fmt.Errorf("row %d: recovery type %s requires a co-teacher", rowNum, recoveryType.Name)
	}

	title := cellValue(row, col, "titolo")
	if title == "" {
		title = recoveryType.Name
	}

	activity := models.RecoveryActivity{
		TeacherID:      teacher.ID,
		SchoolYearID:   schoolYearID,
		RecoveryTypeID: recoveryType.ID,
		Date:           NormalizeDate(date),
		ModuleNumber:   moduleNumber,
		ClassName:      className,
		Title:          title,
		DurationMin:    duration,
		ModulesEq:      duration / ModuleMinutes, // floor, import convention
		Status:         models.ActivityStatusCompleted,
		CoTeacherName:  coTeacher,
	}
	if err := s.db.Create(&activity).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return "", fmt.Errorf("row %d: duplicate slot for %s on %s module %d", rowNum, teacher.FullName(), activity.Date.Format("2006-01-02"), moduleNumber)
		}
		return "", fmt.Errorf("row %d: %v", rowNum, err)
	}

	var budget models.RecoveryBudget
	err = s.db.Where("teacher_id = ? AND school_year_id = ?", teacher.ID, schoolYearID).First(&budget).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Sprintf("row %d: no budget for %s, activity imported without debit", rowNum, teacher.FullName()), nil
		}
		return "", fmt.Errorf("row %d: %v", rowNum, err)
	}
	if err := s.ledger.ApplyDelta(budget.ID, duration, activity.ModulesEq); err != nil {
		return fmt.Sprintf("row %d: budget debit failed for %s: %v", rowNum, teacher.FullName(), err), nil
	}
	return "", nil
}

// ClearAllActivities wipes every activity and zeroes every budget's used
// counters across all school years. Admin-only, invoked from settings.
func (s *ImportService) ClearAllActivities() (deleted int64, err error) {
	res := s.db.Where("1 = 1").Delete(&models.RecoveryActivity{})
	if res.Error != nil {
		return 0, res.Error
	}
	if err := s.db.Model(&models.RecoveryBudget{}).
		Where("1 = 1").
		Updates(map[string]interface{}{"minutes_used": 0, "modules_used": 0}).Error; err != nil {
		return res.RowsAffected, err
	}
	return res.RowsAffected, nil
}

func (s *ImportService) ensureSchoolYear(id uint) error {
	var year models.SchoolYear
	if err := s.db.First(&year, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NotFoundError{Entity: "school year", ID: id}
		}
		return err
	}
	return nil
}

func (s *ImportService) findTeacher(surname, givenName string) (*models.Teacher, error) {
	var teacher models.Teacher
	err := s.db.Where("LOWER(surname) = ? AND LOWER(given_name) = ?",
		strings.ToLower(surname), strings.ToLower(givenName)).First(&teacher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Entity: "teacher", Name: surname + " " + givenName}
		}
		return nil, err
	}
	return &teacher, nil
}

func (s *ImportService) findOrCreateTeacher(surname, givenName string) (*models.Teacher, error) {
	teacher, err := s.findTeacher(surname, givenName)
	if err == nil {
		return teacher, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	created := models.Teacher{Surname: surname, GivenName: givenName}
	if err := s.db.Create(&created).Error; err != nil {
		return nil, err
	}
	return &created, nil
}

// SplitTeacherName splits "Cognome Nome" into surname and given name: the
// first token is the surname, everything after it the given name.
func SplitTeacherName(full string) (surname, givenName string, err error) {
	fields := strings.Fields(strings.TrimSpace(full))
	if len(fields) < 2 {
		return "", "", fmt.Errorf("invalid teacher name %q (expected \"Cognome Nome\")", full)
	}
	return fields[0], strings.Join(fields[1:], " "), nil
}

// --- row helpers ---

func buildColumnIndex(header []string) map[string]int {
	col := map[string]int{}
	for idx, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		col[key] = idx
	}
	return col
}

func cellValue(row []string, col map[string]int, key string) string {
	if idx, ok := col[key]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func isRowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}

func parseImportDate(raw string) (time.Time, error) {
	for _, layout := range []string{"02/01/2006", "2006-01-02", "2/1/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
