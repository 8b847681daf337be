package handlers

import (
	"sabo-arena-service/middleware"
	"sabo-arena-service/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app *fiber.App, profileService *services.ProfileService) {
	// 🔓 Public lookups
	app.Get("/players/search", profileService.SearchPlayers)
	app.Get("/players/:id", profileService.GetPlayerByID)

	// 🔐 Authenticated profile media uploads
	secured := app.Group("/s", middleware.UserContextMiddleware())
	secured.Post("/players/me/avatar", profileService.UploadAvatar)
	secured.Post("/players/me/cover", profileService.UploadCoverPhoto)
}
