package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/lavka/internal/models"
	"github.com/example/lavka/internal/services"
)

const (
	testMerchant = "test_merch_n1"
	testSecret   = "flk3409refn54t54t*FNJRET"
)

func setupCallbackApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.PaymentProvider{},
		&models.PaymentProfile{},
		&models.PurchaseRequest{},
		&models.CallbackLog{},
		&models.TransactionRecord{},
	))

	wayforpay := services.NewWayForPayService(db, "")
	telegram := services.NewTelegramService("", "")
	handler := NewWayForPayHandler(db, wayforpay, telegram)

	app := fiber.New()
	app.Post("/api/wayforpay/callback", handler.Callback)

	return app, db
}

func seedPurchase(t *testing.T, db *gorm.DB, key, amount, currency string) *models.PurchaseRequest {
	profile := &models.PaymentProfile{
		ProviderID:      services.WayForPayProviderID,
		Title:           "WayForPay",
		MerchantAccount: testMerchant,
		SecretKey:       testSecret,
		Active:          true,
	}
	require.NoError(t, db.Create(profile).Error)

	request := &models.PurchaseRequest{
		RequestKey:   key,
		ProfileID:    profile.ID,
		Title:        "Premium upgrade",
		CostAmount:   decimal.RequireFromString(amount),
		CostCurrency: currency,
		ClientEmail:  "buyer@example.com",
		Status:       models.PurchaseRequestPending,
	}
	require.NoError(t, db.Create(request).Error)
	return request
}

func signedCallback(t *testing.T, orderRef, status, amount, currency, secret string) []byte {
	payload := map[string]any{
		"merchantAccount":   testMerchant,
		"orderReference":    orderRef,
		"amount":            json.Number(amount),
		"currency":          currency,
		"authCode":          "541523",
		"cardPan":           "41****1111",
		"transactionStatus": status,
		"reasonCode":        json.Number("1100"),
		"email":             "buyer@example.com",
	}
	payload["merchantSignature"] = services.SignFields([]string{
		testMerchant, orderRef, amount, currency,
		"541523", "41****1111", status, "1100",
	}, secret)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func postCallback(t *testing.T, app *fiber.App, body []byte) (int, string) {
	req := httptest.NewRequest(http.MethodPost, "/api/wayforpay/callback", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestCallbackEndpoint(t *testing.T) {
	t.Run("approved callback accepted end to end", func(t *testing.T) {
		app, db := setupCallbackApp(t)
		seedPurchase(t, db, "req123", "9.99", "USD")

		code, body := postCallback(t, app, signedCallback(t, "req123", "Approved", "9.99", "USD", testSecret))
		assert.Equal(t, http.StatusOK, code)

		var ack services.AckMessage
		require.NoError(t, json.Unmarshal([]byte(body), &ack))
		assert.Equal(t, "req123", ack.OrderReference)
		assert.Equal(t, "accept", ack.Status)
		assert.NotEmpty(t, ack.Signature)

		var request models.PurchaseRequest
		require.NoError(t, db.Where("request_key = ?", "req123").First(&request).Error)
		assert.Equal(t, models.PurchaseRequestCompleted, request.Status)

		var records int64
		require.NoError(t, db.Model(&models.TransactionRecord{}).Count(&records).Error)
		assert.Equal(t, int64(1), records)

		var entry models.CallbackLog
		require.NoError(t, db.Where("transaction_id = ?", "req123").First(&entry).Error)
		assert.Equal(t, "payment", entry.LogType)
		assert.NotEmpty(t, entry.IP)
		assert.Equal(t, entry.LogMessage, body)
	})

	t.Run("duplicate delivery declined", func(t *testing.T) {
		app, db := setupCallbackApp(t)
		seedPurchase(t, db, "req123", "9.99", "USD")
		body := signedCallback(t, "req123", "Approved", "9.99", "USD", testSecret)

		code, _ := postCallback(t, app, body)
		require.Equal(t, http.StatusOK, code)

		code, respBody := postCallback(t, app, body)
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"status":"decline"}`, respBody)

		var records int64
		require.NoError(t, db.Model(&models.TransactionRecord{}).Count(&records).Error)
		assert.Equal(t, int64(1), records)
	})

	t.Run("pending status declined without log entry", func(t *testing.T) {
		app, db := setupCallbackApp(t)
		seedPurchase(t, db, "req123", "9.99", "USD")

		code, body := postCallback(t, app, signedCallback(t, "req123", "Pending", "9.99", "USD", testSecret))
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"status":"decline"}`, body)

		var logs int64
		require.NoError(t, db.Model(&models.CallbackLog{}).Count(&logs).Error)
		assert.Equal(t, int64(0), logs)

		var request models.PurchaseRequest
		require.NoError(t, db.Where("request_key = ?", "req123").First(&request).Error)
		assert.Equal(t, models.PurchaseRequestPending, request.Status)
	})

	t.Run("bad signature declined with error log", func(t *testing.T) {
		app, db := setupCallbackApp(t)
		seedPurchase(t, db, "req123", "9.99", "USD")
		raw := signedCallback(t, "req123", "Approved", "9.99", "USD", "wrong-secret")

		code, body := postCallback(t, app, raw)
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"status":"decline"}`, body)

		var entry models.CallbackLog
		require.NoError(t, db.Where("transaction_id = ?", "req123").First(&entry).Error)
		assert.Equal(t, services.LogTypeError, entry.LogType)
		assert.Equal(t, "Invalid signature.", entry.LogMessage)
		assert.Equal(t, string(raw), entry.RawInput)
	})

	t.Run("cost mismatch declined with error log", func(t *testing.T) {
		app, db := setupCallbackApp(t)
		seedPurchase(t, db, "req123", "9.99", "USD")

		code, body := postCallback(t, app, signedCallback(t, "req123", "Approved", "8.00", "USD", testSecret))
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"status":"decline"}`, body)

		var entry models.CallbackLog
		require.NoError(t, db.Where("transaction_id = ?", "req123").First(&entry).Error)
		assert.Equal(t, services.LogTypeError, entry.LogType)
		assert.Equal(t, "Invalid cost amount or cost currency", entry.LogMessage)
	})

	t.Run("malformed body declined without crashing", func(t *testing.T) {
		app, db := setupCallbackApp(t)
		seedPurchase(t, db, "req123", "9.99", "USD")

		code, body := postCallback(t, app, []byte(`{"orderReference":`))
		assert.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"status":"decline"}`, body)

		var logs int64
		require.NoError(t, db.Model(&models.CallbackLog{}).Count(&logs).Error)
		assert.Equal(t, int64(0), logs)
	})
}
