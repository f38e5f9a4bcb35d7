package sync

import (
	"go-catalog-sync/internal/common/api"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	config     *config.Config
}

func NewSyncApi(controller *SyncController, config *config.Config) api.Route {
	return &SyncApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all sync routes
func (h *SyncApi) Setup(app *fiber.App) {
	syncGroup := app.Group("/api/sync", middleware.AuthMiddleware(h.config.SkipAuth))

	syncGroup.Post("/run", h.controller.RunSync)
	syncGroup.Get("/logs", h.controller.ListSyncLogs)
	syncGroup.Get("/logs/export", h.controller.ExportSyncLogs)
}
