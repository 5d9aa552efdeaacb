package middleware

import (
	"context"

	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const tenantLocal = "tenant"

// KeyVerifier resolves an API key to the tenant it belongs to.
type KeyVerifier interface {
	Verify(ctx context.Context, key string) (*domain.Tenant, error)
}

// apiKey reads the key from the X-API-Key header or the api_key query param.
func apiKey(c *fiber.Ctx) string {
	if k := c.Get("X-API-Key"); k != "" {
		return k
	}
	return c.Query("api_key")
}

// RequireAPIKey authenticates the calling tenant system. 401 without a valid key.
func RequireAPIKey(v KeyVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := apiKey(c)
		if key == "" {
			return response.Unauthorized(c, "API key is required")
		}
		tenant, err := v.Verify(c.Context(), key)
		if err != nil {
			return response.Unauthorized(c, "Invalid API key")
		}
		c.Locals(tenantLocal, tenant)
		return c.Next()
	}
}

// OptionalAPIKey resolves the tenant when a key is present; anonymous
// requests pass through with no tenant. An invalid key is still rejected.
func OptionalAPIKey(v KeyVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := apiKey(c)
		if key == "" {
			return c.Next()
		}
		tenant, err := v.Verify(c.Context(), key)
		if err != nil {
			return response.Unauthorized(c, "Invalid API key")
		}
		c.Locals(tenantLocal, tenant)
		return c.Next()
	}
}

// GetTenant returns the authenticated tenant, or nil for anonymous requests.
func GetTenant(c *fiber.Ctx) *domain.Tenant {
	if t, ok := c.Locals(tenantLocal).(*domain.Tenant); ok {
		return t
	}
	return nil
}
