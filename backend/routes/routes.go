package routes

import (
	"learnhub/backend/cache"
	"learnhub/backend/config"
	"learnhub/backend/controllers"
	"learnhub/backend/middleware"
	"learnhub/backend/models"
	"learnhub/backend/services"
	"learnhub/backend/storage"
	"learnhub/backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps are the shared resources the routes are built from.
type Deps struct {
	DB        *gorm.DB
	Cfg       *config.Config
	Blobs     storage.BlobStore
	Summaries cache.RatingSummaryCache
	Log       *utils.Logger
}

func SetupRoutes(app *fiber.App, d Deps) {
	content := services.NewContentManager(d.DB, d.Blobs, d.Log)
	ledger := services.NewProgressLedger(d.DB, d.Log)
	gate := services.NewRatingGate(d.DB, d.Summaries, d.Log)
	enrollments := services.NewEnrollmentService(d.DB, d.Log)
	admin := services.NewAdminService(d.DB, d.Cfg.PlatformFeePercent, d.Log)

	// Auth routes
	authController := controllers.NewAuthController(d.DB, d.Cfg, d.Log)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(d.DB, d.Cfg)
	instructorOnly := middleware.RequireRoles(models.RoleInstructor)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	// Public catalog
	overviewController := controllers.NewOverviewController(d.DB, d.Cfg, gate)
	ratingsController := controllers.NewRatingsController(gate)
	app.Get("/api/categories", overviewController.ListCategories)
	app.Get("/api/courses", overviewController.SearchCourses)
	app.Get("/api/courses/:id", overviewController.GetCourse)
	app.Get("/api/courses/:id/ratings", ratingsController.GetCourseRatings)
	app.Get("/api/courses/:id/rating-summary", ratingsController.GetRatingSummary)

	// User routes
	userController := controllers.NewUserController(d.DB, d.Cfg)
	enrollmentController := controllers.NewEnrollmentController(enrollments)
	me := app.Group("/api/me", authMiddleware)
	me.Get("/", userController.GetProfile)
	me.Put("/", userController.UpdateProfile)
	me.Get("/enrollments", enrollmentController.MyEnrollments)

	// Learner routes
	progressController := controllers.NewProgressController(ledger)
	courses := app.Group("/api/courses", authMiddleware)
	courses.Post("/:id/enroll", enrollmentController.Enroll)
	courses.Post("/:id/purchase", enrollmentController.Purchase)
	courses.Get("/:id/progress", progressController.GetCourseProgress)
	courses.Get("/:id/can-rate", ratingsController.CanRate)
	courses.Post("/:id/rate", ratingsController.RateCourse)

	coursesController := controllers.NewCoursesController(content, d.Cfg)
	videos := app.Group("/api/videos", authMiddleware)
	videos.Post("/:id/progress", progressController.ReportProgress)
	videos.Get("/:id/content", coursesController.StreamVideo)

	// Payment gateway callback
	app.Post("/api/payments/:txn/settle", middleware.GatewaySecret(d.Cfg.PaymentWebhookSecret), enrollmentController.Settle)

	// Instructor routes
	instructor := app.Group("/api/instructor/courses", authMiddleware, instructorOnly)
	instructor.Get("/", coursesController.ListMyCourses)
	instructor.Post("/", coursesController.CreateCourse)
	instructor.Get("/:id", coursesController.GetMyCourse)
	instructor.Put("/:id", coursesController.UpdateCourse)
	instructor.Delete("/:id", coursesController.DeleteCourse)
	instructor.Put("/:id/image", coursesController.UploadImage)
	instructor.Put("/:id/videos", coursesController.ManageVideos)
	instructor.Delete("/:id/videos", coursesController.DeleteVideos)
	instructor.Post("/:id/publish", coursesController.Publish)
	instructor.Post("/:id/unpublish", coursesController.Unpublish)

	// Admin routes
	analyticsController := controllers.NewAnalyticsController(admin)
	adminGroup := app.Group("/api/admin", authMiddleware, adminOnly)
	adminGroup.Get("/users", analyticsController.ListUsers)
	adminGroup.Post("/users/:id/block", analyticsController.BlockUser)
	adminGroup.Post("/users/:id/unblock", analyticsController.UnblockUser)
	adminGroup.Get("/categories", analyticsController.ListCategories)
	adminGroup.Post("/categories", analyticsController.CreateCategory)
	adminGroup.Delete("/categories/:id", analyticsController.DeleteCategory)
	adminGroup.Get("/revenue", analyticsController.GetRevenue)
}
