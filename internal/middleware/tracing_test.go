package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracing_GeneratesID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = GetTraceID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	_, err = uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, resp.Header.Get("X-Trace-Id"))
}

func TestTracing_ReusesInboundID(t *testing.T) {
	app := fiber.New()
	app.Use(Tracing())
	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = GetTraceID(c)
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Trace-Id", "tenant-system-trace-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "tenant-system-trace-1", seen)
	assert.Equal(t, "tenant-system-trace-1", resp.Header.Get("X-Trace-Id"))
}
