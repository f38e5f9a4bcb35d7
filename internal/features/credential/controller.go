package credential

import (
	"errors"

	"go-catalog-sync/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type CredentialController struct {
	Service CredentialService
}

func NewCredentialController(service CredentialService) *CredentialController {
	return &CredentialController{
		Service: service,
	}
}

// GetCredentials returns the tenant's store connection without the secret
func (ctrl *CredentialController) GetCredentials(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	view, err := ctrl.Service.Get(c.UserContext(), tenantID)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": view,
	})
}

// SaveCredentials creates or replaces the tenant's store connection
func (ctrl *CredentialController) SaveCredentials(c *fiber.Ctx) error {
	tenantID, ok := middleware.TenantID(c)
	if !ok {
		return nil
	}

	var input CredentialInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	view, err := ctrl.Service.Save(c.UserContext(), tenantID, input)
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) || errors.Is(err, ErrSecretMissing) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "Credentials saved successfully",
		"data":    view,
	})
}
