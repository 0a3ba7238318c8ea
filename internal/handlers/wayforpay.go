package handlers

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/lavka/internal/models"
	"github.com/example/lavka/internal/services"
	"github.com/example/lavka/internal/utils"
)

// WayForPayHandler processes asynchronous gateway notifications.
type WayForPayHandler struct {
	db        *gorm.DB
	wayforpay *services.WayForPayService
	telegram  *services.TelegramService
}

// NewWayForPayHandler constructs WayForPayHandler.
func NewWayForPayHandler(db *gorm.DB, wayforpay *services.WayForPayService, telegram *services.TelegramService) *WayForPayHandler {
	return &WayForPayHandler{db: db, wayforpay: wayforpay, telegram: telegram}
}

// Callback receives a gateway notification, runs the validation pipeline and
// dispatches the outcome. The response is always HTTP 200: rejection is
// signalled in the body, never via a transport error the gateway would
// retry.
func (h *WayForPayHandler) Callback(c *fiber.Ctx) error {
	state := services.ParseCallback(c.Body(), c.IP())
	ctx := context.Background()
	now := time.Now()

	accepted := h.wayforpay.ValidateCallback(ctx, state)
	if accepted {
		accepted = h.wayforpay.CompleteTransaction(ctx, state, now)
	}

	if accepted && state.PaymentResult == services.PaymentResultReceived {
		h.completePurchase(state)
	}

	h.writeLog(state, now, accepted)

	if state.LogType == services.LogTypeError {
		log.Printf("[WayForPay] Callback rejected: %s (transaction %s, ip %s)",
			state.LogMessage, state.TransactionID, state.IP)
		go func(transactionID, reason, ip string) {
			_ = h.telegram.NotifyCallbackError(transactionID, reason, ip)
		}(state.TransactionID, state.LogMessage, state.IP)
	}

	c.Status(state.HTTPCode)

	if accepted {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.SendString(state.LogMessage)
	}

	return c.JSON(fiber.Map{"status": "decline"})
}

// completePurchase marks the purchase request completed and notifies
// operators. This is the host-side reaction to a RECEIVED payment result.
func (h *WayForPayHandler) completePurchase(state *services.CallbackState) {
	request := state.PurchaseRequest

	if err := h.db.Model(&models.PurchaseRequest{}).
		Where("id = ?", request.ID).
		Update("status", models.PurchaseRequestCompleted).Error; err != nil {
		log.Printf("[WayForPay] Failed to complete purchase request %s: %v", request.RequestKey, err)
		return
	}

	go func(notification services.PaymentReceivedNotification) {
		_ = h.telegram.NotifyPaymentReceived(notification)
	}(services.PaymentReceivedNotification{
		RequestKey:    request.RequestKey,
		TransactionID: state.TransactionID,
		Title:         request.Title,
		Amount:        request.CostAmount.StringFixed(2),
		Currency:      request.CostCurrency,
		Email:         state.SubscriberID,
	})
}

// writeLog persists the audit record for every non-silent outcome. Accepted
// callbacks log as "payment" with the signed acknowledgement as message.
func (h *WayForPayHandler) writeLog(state *services.CallbackState, now time.Time, accepted bool) {
	if state.LogType == "" && !accepted {
		return
	}

	logType := state.LogType
	if accepted && logType == "" {
		logType = "payment"
	}

	details, err := json.Marshal(state.LogDetails(now.Unix()))
	if err != nil {
		details = nil
	}

	entry := models.CallbackLog{
		ProviderID:    services.WayForPayProviderID,
		TransactionID: state.TransactionID,
		RequestKey:    state.RequestKey,
		SubscriberID:  state.SubscriberID,
		LogType:       logType,
		LogMessage:    state.LogMessage,
		CostAmount:    state.CostAmount,
		CostCurrency:  state.CostCurrency,
		IP:            state.IP,
		RequestTime:   now.Unix(),
		RawInput:      string(state.RawInput),
		Details:       details,
	}

	if err := h.db.Create(&entry).Error; err != nil {
		log.Printf("[WayForPay] Failed to write callback log: %v", err)
	}
}

// ListCallbackLogs returns callback audit history, optionally filtered.
func (h *WayForPayHandler) ListCallbackLogs(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.CallbackLog{}).Where("provider_id = ?", services.WayForPayProviderID)

	if logType := strings.TrimSpace(c.Query("log_type")); logType != "" {
		query = query.Where("log_type = ?", logType)
	}
	if transactionID := strings.TrimSpace(c.Query("transaction_id")); transactionID != "" {
		query = query.Where("transaction_id = ?", transactionID)
	}
	if requestKey := strings.TrimSpace(c.Query("request_key")); requestKey != "" {
		query = query.Where("request_key = ?", requestKey)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var logs []models.CallbackLog
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&logs).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    logs,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
