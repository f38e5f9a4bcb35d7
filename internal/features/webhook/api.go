package webhook

import (
	"go-catalog-sync/internal/common/api"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type WebhookApi struct {
	controller *WebhookController
	config     *config.Config
}

func NewWebhookApi(controller *WebhookController, config *config.Config) api.Route {
	return &WebhookApi{
		controller: controller,
		config:     config,
	}
}

func (h *WebhookApi) Setup(app *fiber.App) {
	webhooks := app.Group("/api/webhooks", middleware.AuthMiddleware(h.config.SkipAuth))

	webhooks.Post("/", h.controller.CreateWebhook)
	webhooks.Get("/", h.controller.ListWebhooks)
	webhooks.Get("/:id", h.controller.GetWebhook)
	webhooks.Put("/:id", h.controller.UpdateWebhook)
	webhooks.Delete("/:id", h.controller.DeleteWebhook)
	webhooks.Post("/:id/test", h.controller.TestWebhook)
	webhooks.Get("/:id/logs", h.controller.ListWebhookLogs)
}
