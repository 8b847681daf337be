package handlers

import (
	"sabo-arena-service/middleware"
	"sabo-arena-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupChallengeRoutes(app *fiber.App, challengeService *services.ChallengeService) {
	// 🔓 Public routes — *no user context*, but **still require Gateway auth**
	app.Get("/challenges/feeds", challengeService.GetChallengeFeeds)
	app.Get("/challenges/:id", challengeService.GetChallengeByID)

	// 🔐 Secured routes — require user context (userID), enforced via middleware
	// Grouped under `/s` per gateway convention.
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Post("/challenges", challengeService.CreateChallenge)
	secured.Post("/challenges/:id/accept", challengeService.AcceptChallenge)
	secured.Post("/challenges/:id/cancel", challengeService.CancelChallenge)
	secured.Post("/challenges/:id/complete", challengeService.CompleteChallenge)

	// ✅ SSE change stream — clients refetch their feeds on every event
	secured.Get("/challenges/stream", challengeService.StreamChallengeChanges)
}
