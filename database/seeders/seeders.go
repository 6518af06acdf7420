package seeders

import (
	"log"
	"time"

	"recuperi_go/database"
	"recuperi_go/models"
	"recuperi_go/utils"
)

// SeedAll runs all seeders
func SeedAll() {
	log.Println("Starting database seeding...")

	SeedSchoolYears()
	SeedRecoveryTypes()
	SeedUsers()

	log.Println("Database seeding completed successfully!")
}

// SeedSchoolYears seeds the current school year and marks it active
func SeedSchoolYears() {
	var count int64
	database.DB.Model(&models.SchoolYear{}).Count(&count)
	if count > 0 {
		log.Println("School years already seeded, skipping...")
		return
	}

	years := []models.SchoolYear{
		{
			Name:      "2025/2026",
			StartDate: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
			IsActive:  true,
		},
	}

	for _, year := range years {
		if err := database.DB.Create(&year).Error; err != nil {
			log.Printf("Error seeding school year %s: %v", year.Name, err)
		}
	}

	log.Println("School years seeded successfully")
}

// SeedRecoveryTypes seeds the activity type catalog
func SeedRecoveryTypes() {
	var count int64
	database.DB.Model(&models.RecoveryType{}).Count(&count)
	if count > 0 {
		log.Println("Recovery types already seeded, skipping...")
		return
	}

	types := []models.RecoveryType{
		{
			Name:               "Recupero",
			Description:        "Lezione di recupero individuale o di gruppo",
			Color:              "#2563eb",
			DefaultDurationMin: 50,
		},
		{
			Name:               "Sportello",
			Description:        "Sportello didattico su prenotazione",
			Color:              "#16a34a",
			DefaultDurationMin: 50,
		},
		{
			Name:               "Copresenza",
			Description:        "Attivita' in copresenza con un altro docente",
			Color:              "#ea580c",
			DefaultDurationMin: 50,
			RequiresCoTeacher:  true,
		},
		{
			Name:               "Potenziamento",
			Description:        "Attivita' di potenziamento",
			Color:              "#9333ea",
			DefaultDurationMin: 50,
		},
	}

	for i := range types {
		types[i].IsActive = true
		if err := database.DB.Create(&types[i]).Error; err != nil {
			log.Printf("Error seeding recovery type %s: %v", types[i].Name, err)
		}
	}

	log.Println("Recovery types seeded successfully")
}

// SeedUsers seeds the default admin account
func SeedUsers() {
	var count int64
	database.DB.Model(&models.User{}).Count(&count)
	if count > 0 {
		log.Println("Users already seeded, skipping...")
		return
	}

	hashedPassword, err := utils.HashPassword("changeme123")
	if err != nil {
		log.Printf("Error hashing default password: %v", err)
		return
	}

	admin := models.User{
		Username: "admin",
		Email:    "admin@example.com",
		Password: hashedPassword,
		Role:     "admin",
		Status:   "active",
	}
	if err := database.DB.Create(&admin).Error; err != nil {
		log.Printf("Error seeding admin user: %v", err)
		return
	}

	log.Println("Users seeded successfully")
}
