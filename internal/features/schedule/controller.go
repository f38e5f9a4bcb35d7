package schedule

import (
	"errors"

	"go-catalog-sync/internal/middleware"
	"go-catalog-sync/pkg/nextrun"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type ScheduleController struct {
	Service ScheduleService
}

func NewScheduleController(service ScheduleService) *ScheduleController {
	return &ScheduleController{
		Service: service,
	}
}

// GetSchedule returns the tenant's schedule
func (ctrl *ScheduleController) GetSchedule(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	schedule, err := ctrl.Service.Get(c.UserContext(), tenantID)
	if err != nil {
		return scheduleError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": schedule,
	})
}

// SaveSchedule creates or updates the tenant's schedule
func (ctrl *ScheduleController) SaveSchedule(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	var input ScheduleInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	schedule, err := ctrl.Service.Upsert(c.UserContext(), tenantID, input)
	if err != nil {
		return scheduleError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Schedule saved successfully",
		"data":    schedule,
	})
}

func (ctrl *ScheduleController) EnableSchedule(c *fiber.Ctx) error {
	return ctrl.setEnabled(c, true)
}

func (ctrl *ScheduleController) DisableSchedule(c *fiber.Ctx) error {
	return ctrl.setEnabled(c, false)
}

func (ctrl *ScheduleController) setEnabled(c *fiber.Ctx, enabled bool) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	schedule, err := ctrl.Service.SetEnabled(c.UserContext(), tenantID, enabled)
	if err != nil {
		return scheduleError(c, err)
	}

	return c.JSON(fiber.Map{
		"data": schedule,
	})
}

// DeleteSchedule removes the tenant's schedule
func (ctrl *ScheduleController) DeleteSchedule(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	if err := ctrl.Service.Delete(c.UserContext(), tenantID); err != nil {
		return scheduleError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Schedule deleted successfully",
	})
}

func scheduleError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, nextrun.ErrInvalidScheduleExpression), errors.As(err, &verrs):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
