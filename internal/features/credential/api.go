package credential

import (
	"go-catalog-sync/internal/common/api"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CredentialApi struct {
	controller *CredentialController
	config     *config.Config
}

func NewCredentialApi(controller *CredentialController, config *config.Config) api.Route {
	return &CredentialApi{
		controller: controller,
		config:     config,
	}
}

func (h *CredentialApi) Setup(app *fiber.App) {
	creds := app.Group("/api/credentials", middleware.AuthMiddleware(h.config.SkipAuth))

	creds.Get("/", h.controller.GetCredentials)
	creds.Put("/", h.controller.SaveCredentials)
}
