package services

import (
	"errors"
	"testing"
	"time"

	"recuperi_go/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivateKeepsSingleActiveYear(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewSchoolYearService(db)

	next := models.SchoolYear{
		Name:      "2026/2027",
		StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2027, 6, 30, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(&next).Error)

	activated, err := svc.Activate(next.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)

	var activeCount int64
	db.Model(&models.SchoolYear{}).Where("is_active = ?", true).Count(&activeCount)
	assert.Equal(t, int64(1), activeCount)

	var previous models.SchoolYear
	require.NoError(t, db.First(&previous, f.Year.ID).Error)
	assert.False(t, previous.IsActive)

	active, err := svc.Active()
	require.NoError(t, err)
	assert.Equal(t, next.ID, active.ID)
}

func TestActivateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewSchoolYearService(db)

	for i := 0; i < 2; i++ {
		activated, err := svc.Activate(f.Year.ID)
		require.NoError(t, err)
		assert.True(t, activated.IsActive)
	}

	var activeCount int64
	db.Model(&models.SchoolYear{}).Where("is_active = ?", true).Count(&activeCount)
	assert.Equal(t, int64(1), activeCount)
}

func TestActivateUnknownYear(t *testing.T) {
	db := setupTestDB(t)
	seedFixtures(t, db)
	svc := NewSchoolYearService(db)

	_, err := svc.Activate(9999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestActiveWithoutAnyActiveYear(t *testing.T) {
	db := setupTestDB(t)
	svc := NewSchoolYearService(db)

	_, err := svc.Active()
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteYearBlockedByBudgets(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	svc := NewSchoolYearService(db)

	err := svc.Delete(f.Year.ID)
	assert.True(t, errors.Is(err, ErrYearInUse))

	// Once the budgets are gone the year can be removed
	require.NoError(t, db.Unscoped().Where("school_year_id = ?", f.Year.ID).Delete(&models.RecoveryBudget{}).Error)
	require.NoError(t, svc.Delete(f.Year.ID))

	var count int64
	db.Model(&models.SchoolYear{}).Where("id = ?", f.Year.ID).Count(&count)
	assert.Zero(t, count)
}
