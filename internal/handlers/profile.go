package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/lavka/internal/models"
	"github.com/example/lavka/internal/services"
)

// ProfileHandler manages payment profile configuration endpoints.
type ProfileHandler struct {
	db *gorm.DB
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{db: db}
}

type profileRequest struct {
	Title           string `json:"title"`
	MerchantAccount string `json:"merchant_account"`
	MerchantDomain  string `json:"merchant_domain"`
	SecretKey       string `json:"secret_key"`
	Active          *bool  `json:"active"`
}

// verifyConfig checks that the profile carries everything the provider needs
// before it can be activated.
func verifyConfig(req profileRequest) error {
	if strings.TrimSpace(req.MerchantAccount) == "" || strings.TrimSpace(req.SecretKey) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "you must provide a merchant account and secret key")
	}
	return nil
}

// ListProfiles returns all configured payment profiles.
func (h *ProfileHandler) ListProfiles(c *fiber.Ctx) error {
	var profiles []models.PaymentProfile
	if err := h.db.Order("created_at desc").Find(&profiles).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": profiles})
}

// CreateProfile registers a new merchant profile for the provider.
func (h *ProfileHandler) CreateProfile(c *fiber.Ctx) error {
	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := verifyConfig(req); err != nil {
		return err
	}

	profile := models.PaymentProfile{
		ProviderID:      services.WayForPayProviderID,
		Title:           req.Title,
		MerchantAccount: strings.TrimSpace(req.MerchantAccount),
		MerchantDomain:  strings.TrimSpace(req.MerchantDomain),
		SecretKey:       strings.TrimSpace(req.SecretKey),
		Active:          true,
	}
	if req.Active != nil {
		profile.Active = *req.Active
	}

	if err := h.db.Create(&profile).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(profile)
}

// UpdateProfile modifies an existing merchant profile.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid profile id")
	}

	var profile models.PaymentProfile
	if err := h.db.First(&profile, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "profile not found")
		}
		return err
	}

	var req profileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.MerchantAccount == "" {
		req.MerchantAccount = profile.MerchantAccount
	}
	if req.SecretKey == "" {
		req.SecretKey = profile.SecretKey
	}

	if err := verifyConfig(req); err != nil {
		return err
	}

	profile.MerchantAccount = strings.TrimSpace(req.MerchantAccount)
	profile.SecretKey = strings.TrimSpace(req.SecretKey)
	if req.Title != "" {
		profile.Title = req.Title
	}
	if req.MerchantDomain != "" {
		profile.MerchantDomain = strings.TrimSpace(req.MerchantDomain)
	}
	if req.Active != nil {
		profile.Active = *req.Active
	}

	if err := h.db.Save(&profile).Error; err != nil {
		return err
	}

	return c.JSON(profile)
}

// DeleteProfile removes a merchant profile.
func (h *ProfileHandler) DeleteProfile(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid profile id")
	}

	if err := h.db.Delete(&models.PaymentProfile{}, "id = ?", id).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
