// handlers/vote_routes.go
package handlers

import (
	"meme-vote-system/middleware"
	"meme-vote-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupVoteRoutes(app *fiber.App, voteService *services.VoteService) {
	// Public reads
	app.Get("/memes/today", voteService.GetTodayMemes)
	app.Get("/memes/:id", voteService.GetMeme)

	// Wallet-scoped routes require the Gateway-verified wallet identity
	walletGroup := app.Group("/", middleware.WalletContextMiddleware())
	walletGroup.Post("/votes", voteService.SubmitVoteHandler)
	walletGroup.Get("/users/me", voteService.GetUserStatus)
	walletGroup.Put("/users/me/lottery-opt", voteService.SetLotteryOptIn)
}
