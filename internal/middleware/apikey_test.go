package middleware

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"unihaven-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticVerifier struct {
	key    string
	tenant *domain.Tenant
}

func (v *staticVerifier) Verify(_ context.Context, key string) (*domain.Tenant, error) {
	if key == v.key {
		return v.tenant, nil
	}
	return nil, errors.New("invalid API key")
}

func testVerifier() *staticVerifier {
	return &staticVerifier{
		key:    "HKU_secret",
		tenant: &domain.Tenant{ID: 1, Code: "HKU"},
	}
}

func echoTenant(c *fiber.Ctx) error {
	tenant := GetTenant(c)
	if tenant == nil {
		return c.SendString("anonymous")
	}
	return c.SendString(tenant.Code)
}

func TestRequireAPIKey(t *testing.T) {
	app := fiber.New()
	app.Get("/protected", RequireAPIKey(testVerifier()), echoTenant)

	// Missing key
	resp, err := app.Test(httptest.NewRequest("GET", "/protected", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Wrong key
	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("X-API-Key", "HKU_wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// Valid key via header
	req = httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("X-API-Key", "HKU_secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Valid key via query param
	resp, err = app.Test(httptest.NewRequest("GET", "/protected?api_key=HKU_secret", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestOptionalAPIKey(t *testing.T) {
	app := fiber.New()
	app.Get("/open", OptionalAPIKey(testVerifier()), echoTenant)

	// Anonymous passes through with no tenant
	resp, err := app.Test(httptest.NewRequest("GET", "/open", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Valid key resolves the tenant
	req := httptest.NewRequest("GET", "/open", nil)
	req.Header.Set("X-API-Key", "HKU_secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// A present but invalid key is still rejected
	req = httptest.NewRequest("GET", "/open", nil)
	req.Header.Set("X-API-Key", "HKU_wrong")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
