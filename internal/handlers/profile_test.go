package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/example/lavka/internal/models"
	"github.com/example/lavka/internal/services"
)

func setupProfileApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.PaymentProfile{}))

	handler := NewProfileHandler(db)
	app := fiber.New()
	app.Get("/api/payment-profiles", handler.ListProfiles)
	app.Post("/api/payment-profiles", handler.CreateProfile)
	app.Put("/api/payment-profiles/:id", handler.UpdateProfile)
	app.Delete("/api/payment-profiles/:id", handler.DeleteProfile)

	return app, db
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload map[string]any) (int, string) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestProfileEndpoints(t *testing.T) {
	t.Run("create requires merchant account and secret key", func(t *testing.T) {
		app, _ := setupProfileApp(t)

		code, body := doJSON(t, app, http.MethodPost, "/api/payment-profiles", map[string]any{
			"title":            "WayForPay",
			"merchant_account": "test_merch_n1",
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, body, "you must provide a merchant account and secret key")
	})

	t.Run("create stores the profile and hides the secret", func(t *testing.T) {
		app, db := setupProfileApp(t)

		code, body := doJSON(t, app, http.MethodPost, "/api/payment-profiles", map[string]any{
			"title":            "WayForPay",
			"merchant_account": "test_merch_n1",
			"merchant_domain":  "www.market.ua",
			"secret_key":       "flk3409refn54t54t*FNJRET",
		})
		require.Equal(t, http.StatusCreated, code)
		assert.NotContains(t, body, "flk3409refn54t54t*FNJRET")

		var profile models.PaymentProfile
		require.NoError(t, db.First(&profile).Error)
		assert.Equal(t, services.WayForPayProviderID, profile.ProviderID)
		assert.Equal(t, "test_merch_n1", profile.MerchantAccount)
		assert.Equal(t, "flk3409refn54t54t*FNJRET", profile.SecretKey)
		assert.True(t, profile.Active)
	})

	t.Run("update keeps credentials when omitted", func(t *testing.T) {
		app, db := setupProfileApp(t)

		profile := models.PaymentProfile{
			ProviderID:      services.WayForPayProviderID,
			Title:           "WayForPay",
			MerchantAccount: "test_merch_n1",
			SecretKey:       "flk3409refn54t54t*FNJRET",
			Active:          true,
		}
		require.NoError(t, db.Create(&profile).Error)

		code, _ := doJSON(t, app, http.MethodPut, "/api/payment-profiles/"+profile.ID.String(), map[string]any{
			"title":  "WayForPay prod",
			"active": false,
		})
		require.Equal(t, http.StatusOK, code)

		var updated models.PaymentProfile
		require.NoError(t, db.First(&updated, "id = ?", profile.ID).Error)
		assert.Equal(t, "WayForPay prod", updated.Title)
		assert.Equal(t, "flk3409refn54t54t*FNJRET", updated.SecretKey)
		assert.False(t, updated.Active)
	})

	t.Run("delete removes the profile", func(t *testing.T) {
		app, db := setupProfileApp(t)

		profile := models.PaymentProfile{
			ProviderID:      services.WayForPayProviderID,
			MerchantAccount: "test_merch_n1",
			SecretKey:       "flk3409refn54t54t*FNJRET",
			Active:          true,
		}
		require.NoError(t, db.Create(&profile).Error)

		code, _ := doJSON(t, app, http.MethodDelete, "/api/payment-profiles/"+profile.ID.String(), nil)
		require.Equal(t, http.StatusOK, code)

		var count int64
		require.NoError(t, db.Model(&models.PaymentProfile{}).Count(&count).Error)
		assert.Zero(t, count)
	})
}
