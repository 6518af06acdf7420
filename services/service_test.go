package services

import (
	"testing"
	"time"

	"recuperi_go/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a fresh in-memory database per test. Max one open
// connection, otherwise every pooled connection would see its own empty
// :memory: database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Teacher{},
		&models.SchoolYear{},
		&models.RecoveryType{},
		&models.RecoveryBudget{},
		&models.RecoveryActivity{},
	))
	return db
}

// fixtures holds the rows most tests start from: one active school year,
// one teacher with a budget, and the standard recovery types.
type fixtures struct {
	Teacher    models.Teacher
	Year       models.SchoolYear
	Recupero   models.RecoveryType
	Copresenza models.RecoveryType
	Budget     models.RecoveryBudget
}

func seedFixtures(t *testing.T, db *gorm.DB) fixtures {
	t.Helper()

	f := fixtures{
		Teacher: models.Teacher{Surname: "Rossi", GivenName: "Mario"},
		Year: models.SchoolYear{
			Name:      "2025/2026",
			StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
			IsActive:  true,
		},
		Recupero: models.RecoveryType{
			Name:               "Recupero",
			DefaultDurationMin: 50,
			IsActive:           true,
		},
		Copresenza: models.RecoveryType{
			Name:               "Copresenza",
			DefaultDurationMin: 50,
			RequiresCoTeacher:  true,
			IsActive:           true,
		},
	}
	require.NoError(t, db.Create(&f.Teacher).Error)
	require.NoError(t, db.Create(&f.Year).Error)
	require.NoError(t, db.Create(&f.Recupero).Error)
	require.NoError(t, db.Create(&f.Copresenza).Error)

	f.Budget = models.RecoveryBudget{
		TeacherID:     f.Teacher.ID,
		SchoolYearID:  f.Year.ID,
		MinutesWeekly: 50,
		MinutesAnnual: 500,
		ModulesAnnual: 10,
	}
	require.NoError(t, db.Create(&f.Budget).Error)
	return f
}

func reloadBudget(t *testing.T, db *gorm.DB, id uint) models.RecoveryBudget {
	t.Helper()
	var budget models.RecoveryBudget
	require.NoError(t, db.First(&budget, id).Error)
	return budget
}

func testDate(day int) time.Time {
	return time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)
}
