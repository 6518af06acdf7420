package services

import (
	"testing"
	"time"

	"recuperi_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	morning := time.Date(2026, 1, 12, 8, 15, 0, 0, time.UTC)
	evening := time.Date(2026, 1, 12, 22, 45, 30, 0, time.UTC)

	assert.Equal(t, NormalizeDate(morning), NormalizeDate(evening))
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), NormalizeDate(morning))
	assert.Equal(t, time.UTC, NormalizeDate(evening).Location())
}

func TestCheckBlockingSameTeacher(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	detector := NewConflictDetector(db)

	existing := models.RecoveryActivity{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		Title:          "Recupero",
		DurationMin:    50,
		ModulesEq:      1,
		Status:         models.ActivityStatusPlanned,
	}
	require.NoError(t, db.Create(&existing).Error)

	// Same slot, even with a different target class, blocks
	result, err := detector.Check(f.Teacher.ID, testDate(12), 3, "5C", 0)
	require.NoError(t, err)
	require.NotNil(t, result.Blocking)
	assert.Equal(t, existing.ID, result.Blocking.ID)

	// Different module on the same day is free
	result, err = detector.Check(f.Teacher.ID, testDate(12), 4, "3A", 0)
	require.NoError(t, err)
	assert.Nil(t, result.Blocking)
}

func TestCheckWarningSameClass(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	detector := NewConflictDetector(db)

	other := models.Teacher{Surname: "Bianchi", GivenName: "Anna"}
	require.NoError(t, db.Create(&other).Error)

	existing := models.RecoveryActivity{
		TeacherID:      other.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		Title:          "Recupero",
		DurationMin:    50,
		ModulesEq:      1,
		Status:         models.ActivityStatusPlanned,
	}
	require.NoError(t, db.Create(&existing).Error)

	result, err := detector.Check(f.Teacher.ID, testDate(12), 3, "3A", 0)
	require.NoError(t, err)
	assert.Nil(t, result.Blocking)
	assert.Contains(t, result.Warning, "3A")
	assert.Contains(t, result.Warning, "Bianchi")
}

func TestCheckExcludesOwnActivity(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	detector := NewConflictDetector(db)

	existing := models.RecoveryActivity{
		TeacherID:      f.Teacher.ID,
		SchoolYearID:   f.Year.ID,
		RecoveryTypeID: f.Recupero.ID,
		Date:           testDate(12),
		ModuleNumber:   3,
		ClassName:      "3A",
		Title:          "Recupero",
		DurationMin:    50,
		ModulesEq:      1,
		Status:         models.ActivityStatusPlanned,
	}
	require.NoError(t, db.Create(&existing).Error)

	// An edit of the activity itself is not a collision
	result, err := detector.Check(f.Teacher.ID, testDate(12), 3, "3A", existing.ID)
	require.NoError(t, err)
	assert.Nil(t, result.Blocking)
	assert.Empty(t, result.Warning)
}
