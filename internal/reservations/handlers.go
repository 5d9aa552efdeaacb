package reservations

import (
	"strconv"
	"time"

	"unihaven-backend/internal/middleware"
	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// Handlers exposes reservation operations over HTTP.
type Handlers struct {
	Service *Service
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, apperrors.Validation(name + " must be a positive integer")
	}
	return uint(id), nil
}

type reserveRequest struct {
	UserID        string `json:"user_id"`
	ContactNumber string `json:"contact_number"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
}

// Reserve handles POST /api/v1/listings/:id/reservations.
func (h *Handlers) Reserve(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	var req reserveRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return response.FromError(c, apperrors.Validation("start_date must use the YYYY-MM-DD format"))
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return response.FromError(c, apperrors.Validation("end_date must use the YYYY-MM-DD format"))
	}

	reservation, err := h.Service.Reserve(c.Context(), listingID, ReserveInput{
		UserID:        req.UserID,
		ContactNumber: req.ContactNumber,
		StartDate:     start.UTC(),
		EndDate:       end.UTC(),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.SuccessCreated(c, "Reservation created successfully", reservation, nil)
}

// Cancel handles DELETE /api/v1/listings/:id/reservations/:reservation_id.
// The requester identifies themselves with the user_id query parameter; an
// authenticated tenant may release reservations already under contract.
func (h *Handlers) Cancel(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	reservationID, err := paramID(c, "reservation_id")
	if err != nil {
		return response.FromError(c, err)
	}
	userID := c.Query("user_id")
	actor := middleware.GetTenant(c)

	if err := h.Service.Cancel(c.Context(), listingID, reservationID, userID, actor); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reservation cancelled successfully", map[string]interface{}{
		"reservation_id": reservationID,
	}, nil)
}

// SignContract handles POST /api/v1/listings/:id/reservations/:reservation_id/contract.
func (h *Handlers) SignContract(c *fiber.Ctx) error {
	listingID, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}
	reservationID, err := paramID(c, "reservation_id")
	if err != nil {
		return response.FromError(c, err)
	}
	reservation, err := h.Service.SignContract(c.Context(), listingID, reservationID, middleware.GetTenant(c))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Contract status updated", reservation, nil)
}

// ListForUser handles GET /api/v1/reservations.
func (h *Handlers) ListForUser(c *fiber.Ctx) error {
	rows, err := h.Service.ListForUser(c.Context(), c.Query("user_id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reservations retrieved successfully", rows, map[string]interface{}{
		"count": len(rows),
	})
}
