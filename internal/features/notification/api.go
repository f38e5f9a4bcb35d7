package notification

import (
	"go-catalog-sync/internal/common/api"
	"go-catalog-sync/internal/config"
	"go-catalog-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type NotificationApi struct {
	controller *NotificationController
	config     *config.Config
}

func NewNotificationApi(controller *NotificationController, config *config.Config) api.Route {
	return &NotificationApi{
		controller: controller,
		config:     config,
	}
}

func (h *NotificationApi) Setup(app *fiber.App) {
	group := app.Group("/api/admin/notifications", middleware.AuthMiddleware(h.config.SkipAuth), middleware.AdminMiddleware())

	group.Get("/", h.controller.List)
	group.Get("/unread-count", h.controller.GetUnreadCount)
	group.Put("/:id/read", h.controller.MarkAsRead)
}
