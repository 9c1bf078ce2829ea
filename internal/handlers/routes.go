package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// Register mounts the save and health routes on app.
func Register(app *fiber.App, save *SaveHandler, health *HealthHandler) {
	app.Get("/health", health.Check)
	app.Get("/health/live", health.Liveness)
	app.Get("/health/ready", health.Readiness)

	app.Get("/save", save.Info)
	app.Get("/save/document", save.Load)
	app.Put("/save/document", save.Store)
	app.Post("/save/flush", save.Flush)
	app.Post("/save/validate", save.Validate)
	app.Post("/save/migrate", save.Migrate)
	app.Post("/save/sync", save.Sync)
	app.Get("/save/backups", save.ListBackups)
	app.Post("/save/backups/restore", save.RestoreBackup)
}
