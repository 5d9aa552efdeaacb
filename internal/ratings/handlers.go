package ratings

import (
	"strconv"

	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// Handlers exposes rating operations over HTTP.
type Handlers struct {
	Service *Service
}

func listingID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, apperrors.Validation("listing id must be a positive integer")
	}
	return uint(id), nil
}

type rateRequest struct {
	UserID string `json:"user_id"`
	Rating *int   `json:"rating"`
}

// Submit handles POST /api/v1/listings/:id/ratings.
func (h *Handlers) Submit(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	var req rateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	if req.Rating == nil {
		return response.FromError(c, apperrors.Validation("rating is required"))
	}
	listing, err := h.Service.Submit(c.Context(), id, req.UserID, *req.Rating)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Rating submitted successfully", map[string]interface{}{
		"listing_id":   listing.ID,
		"rating":       listing.Rating,
		"rating_count": listing.RatingCount,
	}, nil)
}

// List handles GET /api/v1/listings/:id/ratings.
func (h *Handlers) List(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	rows, err := h.Service.ListForListing(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Ratings retrieved successfully", rows, map[string]interface{}{
		"count": len(rows),
	})
}
