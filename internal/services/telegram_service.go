package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// TelegramService handles sending operator notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
	}
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// PaymentReceivedNotification carries data for the payment-received alert.
type PaymentReceivedNotification struct {
	RequestKey    string
	TransactionID string
	Title         string
	Amount        string
	Currency      string
	Email         string
}

// NotifyPaymentReceived tells operators a callback was accepted and the
// purchase completed.
func (s *TelegramService) NotifyPaymentReceived(payment PaymentReceivedNotification) error {
	if s.adminChatID == "" {
		return nil
	}

	message := fmt.Sprintf(`<b>✅ PAYMENT RECEIVED</b>
<b>📋 Order:</b> %s
<b>🛒 Item:</b> %s
<b>💰 Amount:</b> %s %s
<b>👤 Client:</b> %s
<b>💳 Provider:</b> WayForPay`,
		payment.RequestKey,
		payment.Title,
		payment.Amount,
		payment.Currency,
		payment.Email,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}

// NotifyCallbackError alerts operators about an error-level callback
// rejection (bad signature, missing secret, cost mismatch).
func (s *TelegramService) NotifyCallbackError(transactionID, reason, ip string) error {
	if s.adminChatID == "" {
		return nil
	}

	if transactionID == "" {
		transactionID = "unknown"
	}

	message := fmt.Sprintf(`<b>⚠️ CALLBACK REJECTED</b>
<b>📋 Transaction:</b> %s
<b>❌ Reason:</b> %s
<b>🌐 IP:</b> %s
<b>💳 Provider:</b> WayForPay`,
		transactionID,
		reason,
		ip,
	)

	return s.SendToAdmin(strings.TrimSpace(message))
}
