// @title           TrabajApp API
// @version         1.0
// @description     Marketplace for local home services: clients post jobs, professionals submit quotations, clients accept and the job moves through its lifecycle to delivery.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"

	"github.com/trabajapp/trabajapp-backend/pkg/database"
	"github.com/trabajapp/trabajapp-backend/pkg/models"

	"github.com/trabajapp/trabajapp-backend/internal/auth"
	"github.com/trabajapp/trabajapp-backend/internal/catalog"
	"github.com/trabajapp/trabajapp-backend/internal/jobs"
	"github.com/trabajapp/trabajapp-backend/internal/notifications"
	"github.com/trabajapp/trabajapp-backend/internal/payments"
	"github.com/trabajapp/trabajapp-backend/internal/professionals"
	"github.com/trabajapp/trabajapp-backend/internal/quotations"
	"github.com/trabajapp/trabajapp-backend/internal/reviews"
	"github.com/trabajapp/trabajapp-backend/internal/users"
)

func main() {
	_ = godotenv.Load()

	db := database.Init()
	if err := db.AutoMigrate(
		&models.User{}, &models.ServiceCategory{}, &models.Service{},
		&models.ProfessionalProfile{}, &models.ProfessionalService{}, &models.PortfolioItem{},
		&models.Job{}, &models.Quotation{}, &models.Payment{},
		&models.Review{}, &models.JobHistory{}, &models.Notification{},
	); err != nil {
		log.Fatal("migration failed:", err)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api")

	// Auth
	authH := auth.NewHandler(db)
	api.Post("/signup", authH.Signup)
	api.Post("/login", authH.Login)
	api.Get("/me", auth.RequireAuth(), authH.Me)

	// Users (account self-service; /users/me before /users/:id so the
	// literal segment wins)
	userH := users.NewHandler(db)
	api.Put("/users/me", auth.RequireAuth(), userH.UpdateMe)
	api.Delete("/users/me", auth.RequireAuth(), userH.DeactivateMe)
	api.Get("/users/:id", userH.GetPublicProfile)

	// Catalog (public)
	catalogH := catalog.NewHandler(db)
	api.Get("/catalog/categories", catalogH.ListCategories)
	api.Get("/catalog/services", catalogH.ListServices)

	// Professionals
	proH := professionals.NewHandler(db)
	api.Get("/professionals/search", proH.Search)
	api.Get("/professionals/:id", proH.GetPublicProfile)
	api.Put("/professionals/me/profile", auth.RequireAuth(), auth.RequireRole("professional"), proH.UpdateProfile)
	api.Put("/professionals/me/availability", auth.RequireAuth(), auth.RequireRole("professional"), proH.SetAvailability)
	api.Post("/professionals/me/services", auth.RequireAuth(), auth.RequireRole("professional"), proH.AddService)
	api.Delete("/professionals/me/services/:serviceId", auth.RequireAuth(), auth.RequireRole("professional"), proH.RemoveService)
	api.Post("/professionals/me/portfolio", auth.RequireAuth(), auth.RequireRole("professional"), proH.AddPortfolioItem)
	api.Delete("/professionals/me/portfolio/:id", auth.RequireAuth(), auth.RequireRole("professional"), proH.RemovePortfolioItem)
	api.Get("/professionals/me/stats", auth.RequireAuth(), auth.RequireRole("professional"), proH.Stats)

	// Jobs
	jobH := jobs.NewHandler(db)
	// Client
	api.Post("/jobs", auth.RequireAuth(), auth.RequireRole("client"), jobH.Create)
	api.Get("/jobs/mine", auth.RequireAuth(), auth.RequireRole("client"), jobH.ListMine)
	api.Post("/jobs/:id/publish", auth.RequireAuth(), auth.RequireRole("client"), jobH.Publish)
	api.Post("/jobs/:id/confirm", auth.RequireAuth(), auth.RequireRole("client"), jobH.Confirm)
	api.Post("/jobs/:id/deliver", auth.RequireAuth(), auth.RequireRole("client"), jobH.Deliver)
	api.Post("/jobs/:id/cancel", auth.RequireAuth(), auth.RequireRole("client"), jobH.Cancel)
	// Professional
	api.Get("/jobs/open", auth.RequireAuth(), auth.RequireRole("professional"), jobH.OpenFeed)
	api.Post("/jobs/:id/start", auth.RequireAuth(), auth.RequireRole("professional"), jobH.Start)
	api.Post("/jobs/:id/complete", auth.RequireAuth(), auth.RequireRole("professional"), jobH.Complete)
	// Either party
	api.Get("/jobs/:id", auth.RequireAuth(), jobH.GetDetail)
	api.Post("/jobs/:id/dispute", auth.RequireAuth(), jobH.Dispute)

	// Quotations
	quotH := quotations.NewHandler(db)
	api.Post("/quotations", auth.RequireAuth(), auth.RequireRole("professional"), quotH.Submit)
	api.Get("/quotations/mine", auth.RequireAuth(), auth.RequireRole("professional"), quotH.ListMine)
	api.Post("/quotations/:id/withdraw", auth.RequireAuth(), auth.RequireRole("professional"), quotH.Withdraw)
	api.Post("/quotations/:id/respond", auth.RequireAuth(), auth.RequireRole("client"), quotH.Respond)
	api.Get("/jobs/:id/quotations", auth.RequireAuth(), auth.RequireRole("client"), quotH.ListByJobForOwner)

	// Payments
	payH := payments.NewHandler(db)
	api.Get("/payments/mine", auth.RequireAuth(), payH.ListMine)

	// Reviews
	revH := reviews.NewHandler(db)
	api.Post("/reviews", auth.RequireAuth(), revH.Create)
	api.Get("/users/:id/reviews", revH.ListForUser)

	// Notifications
	notifH := notifications.NewHandler(db)
	api.Get("/notifications", auth.RequireAuth(), notifH.List)
	api.Post("/notifications/:id/read", auth.RequireAuth(), notifH.MarkRead)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	log.Println("Server running on :" + port)
	log.Fatal(app.Listen(":" + port))
}
