package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const traceHeader = "X-Trace-Id"
const traceLocal = "trace_id"

// Tracing assigns each request a trace ID, reusing one supplied by the
// calling tenant system so cross-system lookups line up.
func Tracing() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(traceHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Locals(traceLocal, id)
		c.Set(traceHeader, id)
		return c.Next()
	}
}

// GetTraceID returns the request's trace ID, or "" outside the middleware.
func GetTraceID(c *fiber.Ctx) string {
	id, _ := c.Locals(traceLocal).(string)
	return id
}
