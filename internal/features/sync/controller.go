package sync

import (
	"fmt"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type SyncController struct {
	Service SyncService
}

func NewSyncController(service SyncService) *SyncController {
	return &SyncController{
		Service: service,
	}
}

// RunSync triggers a manual run and waits for its outcome
func (ctrl *SyncController) RunSync(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	outcome := ctrl.Service.RunSync(c.UserContext(), tenantID, models.SyncTypeManual)
	if outcome.Skipped {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A sync is already running for this tenant",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Sync completed",
		"data":    outcome,
	})
}

// ListSyncLogs returns the most recent runs, newest first
func (ctrl *SyncController) ListSyncLogs(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	limit := int64(c.QueryInt("limit", defaultLogLimit))
	logs, err := ctrl.Service.ListLogs(c.UserContext(), tenantID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": logs,
	})
}

// ExportSyncLogs downloads the run history as XLSX
func (ctrl *SyncController) ExportSyncLogs(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	data, filename, err := ctrl.Service.ExportLogs(c.UserContext(), tenantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	return c.Send(data)
}
