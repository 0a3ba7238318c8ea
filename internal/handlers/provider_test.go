package handlers

import (
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

func setupProviderApp(t *testing.T) (*fiber.App, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.PaymentProvider{}, &models.PaymentProfile{}))

	handler := NewProviderHandler(db)
	app := fiber.New()
	app.Get("/api/payment-providers", handler.ListProviders)
	app.Delete("/api/payment-providers/:provider_id", handler.DeleteProvider)

	return app, db
}

func TestDeleteProvider(t *testing.T) {
	t.Run("removes the provider and its profiles", func(t *testing.T) {
		app, db := setupProviderApp(t)

		require.NoError(t, db.Create(&models.PaymentProvider{
			ProviderID: services.WayForPayProviderID,
			Title:      "WayForPay",
		}).Error)
		require.NoError(t, db.Create(&models.PaymentProfile{
			ProviderID:      services.WayForPayProviderID,
			MerchantAccount: testMerchant,
			SecretKey:       testSecret,
			Active:          true,
		}).Error)

		req := httptest.NewRequest(http.MethodDelete, "/api/payment-providers/"+services.WayForPayProviderID, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var providers, profiles int64
		require.NoError(t, db.Model(&models.PaymentProvider{}).Count(&providers).Error)
		require.NoError(t, db.Model(&models.PaymentProfile{}).Count(&profiles).Error)
		assert.Zero(t, providers)
		assert.Zero(t, profiles)
	})

	t.Run("unknown provider is a 404", func(t *testing.T) {
		app, _ := setupProviderApp(t)

		req := httptest.NewRequest(http.MethodDelete, "/api/payment-providers/ghost", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
