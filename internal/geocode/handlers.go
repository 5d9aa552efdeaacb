package geocode

import (
	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the address lookup for tenant systems to preview how an
// address will geocode before creating a listing.
type Handlers struct {
	Client Client
}

// Lookup handles GET /api/v1/address-lookup.
func (h *Handlers) Lookup(c *fiber.Ctx) error {
	address := c.Query("address")
	if address == "" {
		return response.FromError(c, apperrors.Validation("address is required"))
	}
	addr, err := h.Client.Lookup(c.Context(), address)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Address resolved successfully", addr, nil)
}
