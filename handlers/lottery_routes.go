// handlers/lottery_routes.go
package handlers

import (
	"errors"

	"meme-vote-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupLotteryRoutes(app *fiber.App, lotteryService *services.LotteryService) {
	app.Get("/lottery/draws", lotteryService.GetDraws)
	app.Get("/lottery/draws/:date", lotteryService.GetDraw)

	// Operational recovery: re-run a draw stuck in pending. A completed draw
	// is never re-executed, so this cannot double-award.
	app.Post("/lottery/draws/:date/force", func(c *fiber.Ctx) error {
		date := c.Params("date")

		draw, err := lotteryService.ExecuteDraw(date, true)
		if errors.Is(err, services.ErrDrawAlreadyExecuted) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"success": false, "error": "Draw already completed for " + date})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "error": "Draw failed"})
		}
		return c.JSON(fiber.Map{"success": true, "draw": draw})
	})
}
