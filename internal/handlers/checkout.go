package handlers

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/lavka/internal/config"
	"github.com/example/lavka/internal/middleware"
	"github.com/example/lavka/internal/models"
	"github.com/example/lavka/internal/services"
)

// CheckoutHandler creates purchase requests and initiates gateway payments.
type CheckoutHandler struct {
	db        *gorm.DB
	cfg       *config.Config
	wayforpay *services.WayForPayService
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(db *gorm.DB, cfg *config.Config, wayforpay *services.WayForPayService) *CheckoutHandler {
	return &CheckoutHandler{db: db, cfg: cfg, wayforpay: wayforpay}
}

type checkoutRequest struct {
	ProfileID string          `json:"profile_id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Email     string          `json:"email"`
	Recurring bool            `json:"recurring"`
}

// Checkout records a pending purchase request and asks the gateway for a
// payment page. The response carries either a redirect URL or the gateway's
// rejection reason.
func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Title) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "title is required")
	}
	if !req.Amount.IsPositive() {
		return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
	}
	if !services.SupportsCurrency(req.Currency) {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported currency")
	}

	profileID, err := uuid.Parse(req.ProfileID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid profile_id")
	}

	var profile models.PaymentProfile
	if err := h.db.
		Where("id = ? AND provider_id = ? AND active", profileID, services.WayForPayProviderID).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "payment profile not found")
		}
		return err
	}

	if req.Recurring {
		if _, err := services.SupportsRecurring(&profile, "month", 1); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}

	var userIDPtr *uuid.UUID
	visitorEmail := ""
	if userID, ok := middleware.GetCurrentUserID(c); ok {
		var user models.User
		if err := h.db.First(&user, "id = ?", userID).Error; err == nil {
			userIDPtr = &userID
			visitorEmail = user.Email
		}
	}

	if req.Email == "" && visitorEmail == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	request := models.PurchaseRequest{
		RequestKey:   services.NewRequestKey(),
		UserID:       userIDPtr,
		ProfileID:    profile.ID,
		Title:        req.Title,
		CostAmount:   req.Amount.Round(2),
		CostCurrency: req.Currency,
		ClientEmail:  req.Email,
		Status:       models.PurchaseRequestPending,
	}
	if request.ClientEmail == "" {
		request.ClientEmail = visitorEmail
	}

	if err := h.db.Create(&request).Error; err != nil {
		return err
	}

	purchase := services.Purchase{
		Title:    req.Title,
		Cost:     request.CostAmount,
		Currency: request.CostCurrency,
		Email:    req.Email,
	}

	payload := services.BuildPaymentRequest(&request, purchase, &profile,
		h.cfg.MerchantDomain, h.cfg.ServiceURL, time.Now(), visitorEmail)

	result, err := h.wayforpay.InitiatePayment(context.Background(), payload)
	if err != nil {
		log.Printf("[WayForPay] Payment initiation failed for %s: %v", request.RequestKey, err)
		return fiber.NewError(fiber.StatusBadGateway, "something went wrong, please try again")
	}

	if result.Reason != "" {
		return fiber.NewError(fiber.StatusBadRequest, result.Reason)
	}

	return c.JSON(fiber.Map{
		"url":         result.RedirectURL,
		"request_key": request.RequestKey,
	})
}
