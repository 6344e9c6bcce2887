// handlers/scheduler_routes.go
package handlers

import (
	"errors"

	"meme-vote-system/models"
	"meme-vote-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupSchedulerRoutes exposes the scheduling boundary: manual task triggers
// and the status/health surface. Gateway auth is enforced globally, so these
// are operator endpoints.
func SetupSchedulerRoutes(app *fiber.App, supervisor *services.Supervisor) {
	app.Post("/scheduler/trigger/:task", func(c *fiber.Ctx) error {
		task := c.Params("task")

		result, err := supervisor.TriggerTask(c.Context(), task)
		if errors.Is(err, services.ErrUnknownTask) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "Unknown task: " + task})
		}
		if err != nil {
			// already written to the scheduler log; report without crashing
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": err.Error()})
		}
		return c.JSON(fiber.Map{"success": true, "result": result})
	})

	app.Get("/scheduler/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"success": true, "status": supervisor.Status()})
	})

	app.Get("/scheduler/health", func(c *fiber.Ctx) error {
		if !supervisor.Healthy() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "status": "degraded"})
		}
		return c.JSON(fiber.Map{"success": true, "status": "ok"})
	})

	app.Get("/scheduler/logs", func(c *fiber.Ctx) error {
		var logs []models.SchedulerLog
		if err := supervisor.DB.Order("created_at DESC").Limit(50).Find(&logs).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Failed to fetch logs"})
		}
		return c.JSON(fiber.Map{"success": true, "logs": logs})
	})
}
