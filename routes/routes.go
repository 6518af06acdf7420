package routes

import (
	"recuperi_go/controllers"
	"recuperi_go/middleware"
	"recuperi_go/services"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, logArchiveService *services.LogArchiveService) {
	// Initialize controllers
	authController := &controllers.AuthController{}
	activityController := controllers.NewActivityController()
	budgetController := controllers.NewBudgetController()
	teacherController := controllers.NewTeacherController()
	schoolYearController := controllers.NewSchoolYearController()
	recoveryTypeController := controllers.NewRecoveryTypeController()
	importController := controllers.NewImportController()
	settingsController := controllers.NewSettingsController()
	logController := controllers.NewLogController(logArchiveService)

	// API group
	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Get("/profile", middleware.JWTMiddleware(), authController.GetProfile)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware())

	// Profile routes (authenticated users)
	protected.Get("/profile", authController.GetProfile)
	protected.Put("/profile/password", authController.ChangePassword)
	protected.Post("/auth/logout", authController.Logout)

	// User management (admin only)
	users := protected.Group("/users", middleware.RequireAdmin())
	users.Post("/", authController.Register)

	// Activity ledger routes
	activities := protected.Group("/activities")
	activities.Get("/", activityController.GetActivities)
	activities.Get("/:id", activityController.GetActivity)
	activities.Post("/", activityController.CreateActivity)
	activities.Put("/:id", activityController.UpdateActivity)
	activities.Patch("/:id/status", activityController.ToggleStatus)
	activities.Delete("/:id", activityController.DeleteActivity)

	// Budget routes
	budgets := protected.Group("/budgets")
	budgets.Get("/", budgetController.GetBudgets)
	budgets.Get("/:id", budgetController.GetBudget)
	budgets.Post("/", middleware.RequireAdmin(), budgetController.CreateBudget)
	budgets.Put("/:id", middleware.RequireAdmin(), budgetController.UpdateBudget)
	budgets.Delete("/:id", middleware.RequireAdmin(), budgetController.DeleteBudget)

	// Teacher registry routes
	teachers := protected.Group("/teachers")
	teachers.Get("/", teacherController.GetTeachers)
	teachers.Get("/:id", teacherController.GetTeacher)
	teachers.Post("/", middleware.RequireAdmin(), teacherController.CreateTeacher)
	teachers.Put("/:id", middleware.RequireAdmin(), teacherController.UpdateTeacher)
	teachers.Delete("/:id", middleware.RequireAdmin(), teacherController.DeleteTeacher)

	// School year routes
	schoolYears := protected.Group("/school-years")
	schoolYears.Get("/", schoolYearController.GetSchoolYears)
	schoolYears.Get("/active", schoolYearController.GetActiveSchoolYear)
	schoolYears.Post("/", middleware.RequireAdmin(), schoolYearController.CreateSchoolYear)
	schoolYears.Post("/:id/activate", middleware.RequireAdmin(), schoolYearController.ActivateSchoolYear)
	schoolYears.Delete("/:id", middleware.RequireAdmin(), schoolYearController.DeleteSchoolYear)

	// Recovery type routes
	recoveryTypes := protected.Group("/recovery-types")
	recoveryTypes.Get("/", recoveryTypeController.GetRecoveryTypes)
	recoveryTypes.Post("/", middleware.RequireAdmin(), recoveryTypeController.CreateRecoveryType)
	recoveryTypes.Put("/:id", middleware.RequireAdmin(), recoveryTypeController.UpdateRecoveryType)
	recoveryTypes.Delete("/:id", middleware.RequireAdmin(), recoveryTypeController.DeleteRecoveryType)

	// Bulk import routes (admin only)
	imports := protected.Group("/imports", middleware.RequireAdmin())
	imports.Post("/budgets", importController.ImportBudgets)
	imports.Post("/activities", importController.ImportActivities)

	// Settings routes (admin only)
	settings := protected.Group("/settings", middleware.RequireAdmin())
	settings.Delete("/clear-activities", settingsController.ClearActivities)

	// Audit log routes (admin only)
	logs := protected.Group("/logs", middleware.RequireAdmin())
	logs.Get("/", logController.GetLogs)
	logs.Get("/archives", logController.GetArchives)
	logs.Get("/archives/:id/download", logController.DownloadArchive)
}
