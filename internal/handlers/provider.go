package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/lavka/internal/models"
)

// ProviderHandler exposes the payment provider registry.
type ProviderHandler struct {
	db *gorm.DB
}

// NewProviderHandler constructs ProviderHandler.
func NewProviderHandler(db *gorm.DB) *ProviderHandler {
	return &ProviderHandler{db: db}
}

// ListProviders returns all registered payment integrations.
func (h *ProviderHandler) ListProviders(c *fiber.Ctx) error {
	var providers []models.PaymentProvider
	if err := h.db.Order("title").Find(&providers).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": providers})
}

// DeleteProvider removes a provider and all of its profiles. Profiles cannot
// outlive their provider: an orphaned profile would still carry credentials
// nothing can use.
func (h *ProviderHandler) DeleteProvider(c *fiber.Ctx) error {
	providerID := strings.TrimSpace(c.Params("provider_id"))
	if providerID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "invalid provider id")
	}

	var provider models.PaymentProvider
	if err := h.db.First(&provider, "provider_id = ?", providerID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "provider not found")
		}
		return err
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.PaymentProfile{}, "provider_id = ?", providerID).Error; err != nil {
			return err
		}
		return tx.Delete(&provider).Error
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
