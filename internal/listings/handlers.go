package listings

import (
	"strconv"
	"time"

	"unihaven-backend/internal/middleware"
	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// Handlers exposes the listing catalogue over HTTP.
type Handlers struct {
	Service *Service
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, apperrors.Validation("dates must use the YYYY-MM-DD format")
	}
	t = t.UTC()
	return &t, nil
}

func listingID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return 0, apperrors.Validation("listing id must be a positive integer")
	}
	return uint(id), nil
}

type createRequest struct {
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Type          string  `json:"type"`
	Price         float64 `json:"price"`
	Beds          int     `json:"beds"`
	Bedrooms      int     `json:"bedrooms"`
	AvailableFrom string  `json:"available_from"`
	AvailableTo   string  `json:"available_to"`
	ContactPhone  string  `json:"contact_phone"`
	ContactEmail  string  `json:"contact_email"`
	Address       string  `json:"address"`
	RoomNumber    string  `json:"room_number"`
	FloorNumber   string  `json:"floor_number"`
	FlatNumber    string  `json:"flat_number"`
}

// Create handles POST /api/v1/listings. A listing whose identity key already
// exists is merged: the caller is attached and the existing record returned.
func (h *Handlers) Create(c *fiber.Ctx) error {
	tenant := middleware.GetTenant(c)
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	from, err := parseDate(req.AvailableFrom)
	if err != nil {
		return response.FromError(c, err)
	}
	to, err := parseDate(req.AvailableTo)
	if err != nil {
		return response.FromError(c, err)
	}

	listing, merged, err := h.Service.CreateOrMerge(c.Context(), tenant, CreateOrMergeInput{
		Title:         req.Title,
		Description:   req.Description,
		Type:          req.Type,
		Price:         req.Price,
		Beds:          req.Beds,
		Bedrooms:      req.Bedrooms,
		AvailableFrom: from,
		AvailableTo:   to,
		ContactPhone:  req.ContactPhone,
		ContactEmail:  req.ContactEmail,
		Address:       req.Address,
		RoomNumber:    req.RoomNumber,
		FloorNumber:   req.FloorNumber,
		FlatNumber:    req.FlatNumber,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	meta := map[string]interface{}{"merged": merged}
	if merged {
		return response.Success(c, "Listing merged with existing record", listing, meta)
	}
	return response.SuccessCreated(c, "Listing created successfully", listing, meta)
}

// Delete handles DELETE /api/v1/listings/:id. Detaches the caller; the last
// tenant out deletes the listing and everything hanging off it.
func (h *Handlers) Delete(c *fiber.Ctx) error {
	tenant := middleware.GetTenant(c)
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	outcome, err := h.Service.RemoveTenant(c.Context(), tenant, id)
	if err != nil {
		return response.FromError(c, err)
	}
	if outcome == OutcomeDeleted {
		return response.Success(c, "Listing deleted", map[string]interface{}{"outcome": outcome}, nil)
	}
	return response.Success(c, "Tenant detached from listing", map[string]interface{}{"outcome": outcome}, nil)
}

// Get handles GET /api/v1/listings/:id.
func (h *Handlers) Get(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	view, err := h.Service.GetByID(c.Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing retrieved successfully", view, nil)
}

// CheckAvailability handles GET /api/v1/listings/:id/availability.
func (h *Handlers) CheckAvailability(c *fiber.Ctx) error {
	id, err := listingID(c)
	if err != nil {
		return response.FromError(c, err)
	}
	start, err := parseDate(c.Query("start_date"))
	if err != nil {
		return response.FromError(c, err)
	}
	end, err := parseDate(c.Query("end_date"))
	if err != nil {
		return response.FromError(c, err)
	}
	if start == nil || end == nil {
		return response.FromError(c, apperrors.Validation("start_date and end_date are required"))
	}
	available, err := h.Service.CheckAvailability(c.Context(), id, *start, *end)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Availability checked", map[string]interface{}{
		"listing_id": id,
		"start_date": start.Format(dateLayout),
		"end_date":   end.Format(dateLayout),
		"available":  available,
	}, nil)
}

// Search handles GET /api/v1/listings.
func (h *Handlers) Search(c *fiber.Ctx) error {
	tenant := middleware.GetTenant(c)

	from, err := parseDate(c.Query("available_from"))
	if err != nil {
		return response.FromError(c, err)
	}
	to, err := parseDate(c.Query("available_to"))
	if err != nil {
		return response.FromError(c, err)
	}

	in := SearchInput{
		Type:            c.Query("type"),
		Region:          c.Query("region"),
		AvailableFrom:   from,
		AvailableTo:     to,
		MinBeds:         c.QueryInt("min_beds"),
		MinBedrooms:     c.QueryInt("min_bedrooms"),
		MaxPrice:        c.QueryFloat("max_price"),
		Campus:          c.Query("campus"),
		MaxDistanceKm:   c.QueryFloat("distance"),
		OrderByDistance: c.QueryBool("order_by_distance"),
		OrderByPrice:    c.QueryBool("order_by_price"),
	}
	results, err := h.Service.Search(c.Context(), tenant, in)
	if err != nil {
		return response.FromError(c, err)
	}
	if c.QueryBool("available_only") {
		results = AvailableOnly(results)
	}
	return response.Success(c, "Listings retrieved successfully", results, map[string]interface{}{
		"count": len(results),
	})
}

// Events handles GET /api/v1/listing-events.
func (h *Handlers) Events(c *fiber.Ctx) error {
	tenant := middleware.GetTenant(c)
	events, err := h.Service.Events(c.Context(), tenant)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Listing events retrieved successfully", events, map[string]interface{}{
		"count": len(events),
	})
}
