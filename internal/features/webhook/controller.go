package webhook

import (
	"errors"
	"strconv"

	"go-catalog-sync/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WebhookController struct {
	Service WebhookService
}

func NewWebhookController(service WebhookService) *WebhookController {
	return &WebhookController{
		Service: service,
	}
}

// CreateWebhook godoc
// @Summary Create webhook
// @Description Create a new outbound webhook for sync events
// @Tags webhooks
// @Accept json
// @Produce json
// @Param webhook body WebhookInput true "Webhook Details"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /api/webhooks [post]
func (ctrl *WebhookController) CreateWebhook(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	var input WebhookInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var createdBy string
	if claims, ok := middleware.Claims(c); ok {
		createdBy = claims.UserID
	}

	webhook, err := ctrl.Service.CreateWebhook(c.UserContext(), tenantID, createdBy, input)
	if err != nil {
		return webhookError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Webhook created successfully",
		"data":    webhook,
	})
}

// ListWebhooks godoc
// @Summary List webhooks
// @Tags webhooks
// @Produce json
// @Success 200 {array} Webhook
// @Router /api/webhooks [get]
func (ctrl *WebhookController) ListWebhooks(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	webhooks, err := ctrl.Service.ListWebhooks(c.UserContext(), tenantID)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": webhooks,
	})
}

// GetWebhook godoc
// @Summary Get webhook
// @Tags webhooks
// @Param id path string true "Webhook ID"
// @Router /api/webhooks/{id} [get]
func (ctrl *WebhookController) GetWebhook(c *fiber.Ctx) error {
	tenantID, id, ok := tenantAndID(c)
	if !ok {
		return nil
	}

	webhook, err := ctrl.Service.GetWebhook(c.UserContext(), tenantID, id)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(webhook)
}

// UpdateWebhook godoc
// @Summary Update webhook
// @Tags webhooks
// @Param id path string true "Webhook ID"
// @Router /api/webhooks/{id} [put]
func (ctrl *WebhookController) UpdateWebhook(c *fiber.Ctx) error {
	tenantID, id, ok := tenantAndID(c)
	if !ok {
		return nil
	}

	var input WebhookInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	webhook, err := ctrl.Service.UpdateWebhook(c.UserContext(), tenantID, id, input)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Webhook updated successfully",
		"data":    webhook,
	})
}

// DeleteWebhook godoc
// @Summary Delete webhook
// @Tags webhooks
// @Param id path string true "Webhook ID"
// @Router /api/webhooks/{id} [delete]
func (ctrl *WebhookController) DeleteWebhook(c *fiber.Ctx) error {
	tenantID, id, ok := tenantAndID(c)
	if !ok {
		return nil
	}

	if err := ctrl.Service.DeleteWebhook(c.UserContext(), tenantID, id); err != nil {
		return webhookError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Webhook deleted successfully",
	})
}

// TestWebhook sends a synthetic success event through the normal delivery path
func (ctrl *WebhookController) TestWebhook(c *fiber.Ctx) error {
	tenantID, id, ok := tenantAndID(c)
	if !ok {
		return nil
	}

	result, err := ctrl.Service.SendTest(c.UserContext(), tenantID, id)
	if err != nil {
		return webhookError(c, err)
	}

	resp := fiber.Map{
		"success":  result.Status == DeliverySuccess,
		"status":   result.Status,
		"attempts": result.Attempts,
	}
	if result.Err != nil {
		resp["error"] = result.Err.Error()
	}
	return c.JSON(resp)
}

// ListWebhookLogs returns delivery attempts, newest first
func (ctrl *WebhookController) ListWebhookLogs(c *fiber.Ctx) error {
	tenantID, id, ok := tenantAndID(c)
	if !ok {
		return nil
	}

	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.Query("limit", "20"), 10, 64)
	status := DeliveryStatus(c.Query("status"))
	if status != "" && status != DeliverySuccess && status != DeliveryFailed {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "status must be SUCCESS or FAILED",
		})
	}

	logs, total, err := ctrl.Service.ListLogs(c.UserContext(), tenantID, id, status, page, limit)
	if err != nil {
		return webhookError(c, err)
	}

	return c.JSON(fiber.Map{
		"data":  logs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func tenantAndID(c *fiber.Ctx) (primitive.ObjectID, primitive.ObjectID, bool) {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(c.Params("id"))
	if err != nil {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid webhook ID"})
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return tenantID, id, true
}

func webhookError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &verrs):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
