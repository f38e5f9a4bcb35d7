package schedule

import (
	"go-catalog-sync/internal/common/api"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ScheduleApi struct {
	controller *ScheduleController
	config     *config.Config
}

func NewScheduleApi(controller *ScheduleController, config *config.Config) api.Route {
	return &ScheduleApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all schedule routes
func (h *ScheduleApi) Setup(app *fiber.App) {
	scheduleGroup := app.Group("/api/sync/schedule", middleware.AuthMiddleware(h.config.SkipAuth))

	scheduleGroup.Get("/", h.controller.GetSchedule)
	scheduleGroup.Put("/", h.controller.SaveSchedule)
	scheduleGroup.Delete("/", h.controller.DeleteSchedule)
	scheduleGroup.Post("/enable", h.controller.EnableSchedule)
	scheduleGroup.Post("/disable", h.controller.DisableSchedule)
}
