package listings

import (
	"context"
	"errors"
	"time"

	"unihaven-backend/internal/availability"
	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/geocode"
	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/pkg/txlock"

	"gorm.io/gorm"
)

// Service resolves listing identity, manages tenancy associations and serves
// the catalogue.
type Service struct {
	DB  *gorm.DB
	Geo geocode.Client
}

// CreateOrMergeInput carries the fields of a new listing. Address is free
// text and is geocoded before anything is written.
type CreateOrMergeInput struct {
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Type          string     `json:"type"`
	Price         float64    `json:"price"`
	Beds          int        `json:"beds"`
	Bedrooms      int        `json:"bedrooms"`
	AvailableFrom *time.Time `json:"available_from"`
	AvailableTo   *time.Time `json:"available_to"`
	ContactPhone  string     `json:"contact_phone"`
	ContactEmail  string     `json:"contact_email"`
	Address       string     `json:"address"`
	RoomNumber    string     `json:"room_number"`
	FloorNumber   string     `json:"floor_number"`
	FlatNumber    string     `json:"flat_number"`
}

var listingTypes = map[string]bool{
	domain.TypeApartment: true,
	domain.TypeHouse:     true,
	domain.TypeHostel:    true,
}

func (in *CreateOrMergeInput) validate() error {
	if in.Title == "" || in.Type == "" || in.Address == "" {
		return apperrors.Validation("title, type and address are required")
	}
	if !listingTypes[in.Type] {
		return apperrors.Validation("type must be one of APARTMENT, HOUSE, HOSTEL")
	}
	if in.AvailableFrom != nil && in.AvailableTo != nil && in.AvailableFrom.After(*in.AvailableTo) {
		return apperrors.Validation("available_from must not be after available_to")
	}
	return nil
}

// CreateOrMerge creates a new listing for the tenant, or attaches the tenant
// to an existing listing with the same identity key. The geocode runs before
// the transaction so an upstream failure writes nothing; the unique index on
// address_key arbitrates concurrent creation attempts.
func (s *Service) CreateOrMerge(ctx context.Context, tenant *domain.Tenant, in CreateOrMergeInput) (*domain.Listing, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	addr, err := s.Geo.Lookup(ctx, in.Address)
	if err != nil {
		return nil, false, err
	}
	key := domain.BuildAddressKey(addr.GeoAddress, in.RoomNumber, in.FloorNumber, in.FlatNumber)

	var result *domain.Listing
	merged := false
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Listing
		err := txlock.ForUpdate(tx).Where("address_key = ?", key).First(&existing).Error
		if err == nil {
			result = &existing
			merged = true
			return s.attach(tx, &existing, tenant)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		listing := &domain.Listing{
			Title:         in.Title,
			Description:   in.Description,
			Type:          in.Type,
			Price:         in.Price,
			Beds:          in.Beds,
			Bedrooms:      in.Bedrooms,
			AvailableFrom: in.AvailableFrom,
			AvailableTo:   in.AvailableTo,
			ContactPhone:  in.ContactPhone,
			ContactEmail:  in.ContactEmail,
			BuildingName:  addr.BuildingName,
			EstateName:    addr.EstateName,
			StreetName:    addr.StreetName,
			BuildingNo:    addr.BuildingNo,
			District:      addr.District,
			Region:        addr.Region,
			Latitude:      addr.Latitude,
			Longitude:     addr.Longitude,
			GeoAddress:    addr.GeoAddress,
			RoomNumber:    in.RoomNumber,
			FloorNumber:   in.FloorNumber,
			FlatNumber:    in.FlatNumber,
			AddressKey:    key,
		}
		if err := tx.Create(listing).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				// Lost the race: another writer inserted the same key.
				// The constraint is the arbiter; fall back to the merge path.
				if err := tx.Where("address_key = ?", key).First(&existing).Error; err != nil {
					return err
				}
				result = &existing
				merged = true
				return s.attach(tx, &existing, tenant)
			}
			return err
		}
		if err := tx.Create(&domain.TenancyAssociation{ListingID: listing.ID, TenantID: tenant.ID}).Error; err != nil {
			return err
		}
		result = listing
		return domain.AppendEvent(tx, listing.ID, domain.EventCreated, &tenant.Code, map[string]interface{}{
			"title":       listing.Title,
			"address_key": listing.AddressKey,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return result, merged, nil
}

// attach adds a tenancy association to an existing listing.
func (s *Service) attach(tx *gorm.DB, listing *domain.Listing, tenant *domain.Tenant) error {
	var count int64
	if err := tx.Model(&domain.TenancyAssociation{}).
		Where("listing_id = ? AND tenant_id = ?", listing.ID, tenant.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.Conflict("Tenant is already associated with this listing")
	}
	if err := tx.Create(&domain.TenancyAssociation{ListingID: listing.ID, TenantID: tenant.ID}).Error; err != nil {
		return err
	}
	return domain.AppendEvent(tx, listing.ID, domain.EventMerged, &tenant.Code, map[string]interface{}{
		"address_key": listing.AddressKey,
	})
}

// RemoveTenantOutcome reports what RemoveTenant did.
type RemoveTenantOutcome string

const (
	OutcomeDetached RemoveTenantOutcome = "detached"
	OutcomeDeleted  RemoveTenantOutcome = "deleted"
)

// RemoveTenant detaches the tenant from the listing; removing the last
// association deletes the listing and cascades to its reservation periods and
// ratings in the same transaction.
func (s *Service) RemoveTenant(ctx context.Context, tenant *domain.Tenant, listingID uint) (RemoveTenantOutcome, error) {
	var outcome RemoveTenantOutcome
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing domain.Listing
		if err := txlock.ForUpdate(tx).Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Listing not found")
			}
			return err
		}

		res := tx.Where("listing_id = ? AND tenant_id = ?", listing.ID, tenant.ID).
			Delete(&domain.TenancyAssociation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.Forbidden("Tenant is not associated with this listing")
		}

		var remaining int64
		if err := tx.Model(&domain.TenancyAssociation{}).
			Where("listing_id = ?", listing.ID).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			outcome = OutcomeDetached
			return domain.AppendEvent(tx, listing.ID, domain.EventDetached, &tenant.Code, map[string]interface{}{
				"remaining_tenants": remaining,
			})
		}

		// Last holder gone: the listing must not outlive this transaction.
		if err := tx.Where("listing_id = ?", listing.ID).Delete(&domain.ReservationPeriod{}).Error; err != nil {
			return err
		}
		if err := tx.Where("listing_id = ?", listing.ID).Delete(&domain.Rating{}).Error; err != nil {
			return err
		}
		if err := domain.AppendEvent(tx, listing.ID, domain.EventDeleted, &tenant.Code, map[string]interface{}{
			"title": listing.Title,
		}); err != nil {
			return err
		}
		if err := tx.Delete(&listing).Error; err != nil {
			return err
		}
		outcome = OutcomeDeleted
		return nil
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

// ListingView is the listing projection returned by read endpoints.
type ListingView struct {
	domain.Listing
	FormattedAddress string                `json:"formatted_address"`
	AvailablePeriods []availability.Period `json:"available_periods"`
	Reserved         bool                  `json:"reserved"`
}

// View builds the projection for a loaded listing and its reservations.
func View(listing *domain.Listing, reservations []domain.ReservationPeriod) *ListingView {
	w := availability.WindowOf(listing)
	reserved := availability.FromReservations(reservations)
	periods := availability.ComputePeriods(w, reserved)
	if periods == nil {
		periods = []availability.Period{}
	}
	return &ListingView{
		Listing:          *listing,
		FormattedAddress: listing.FormattedAddress(),
		AvailablePeriods: periods,
		Reserved:         len(periods) == 0,
	}
}

// GetByID returns the listing projection with its computed available periods.
func (s *Service) GetByID(ctx context.Context, listingID uint) (*ListingView, error) {
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Listing not found")
		}
		return nil, err
	}
	var reservations []domain.ReservationPeriod
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listing.ID).Find(&reservations).Error; err != nil {
		return nil, err
	}
	return View(&listing, reservations), nil
}

// CheckAvailability reports whether [start, end] can be booked right now.
func (s *Service) CheckAvailability(ctx context.Context, listingID uint, start, end time.Time) (bool, error) {
	if !availability.Date(start).Before(availability.Date(end)) {
		return false, apperrors.Validation("start date must be before end date")
	}
	var listing domain.Listing
	if err := s.DB.WithContext(ctx).Where("id = ?", listingID).First(&listing).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.NotFound("Listing not found")
		}
		return false, err
	}
	var reservations []domain.ReservationPeriod
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listing.ID).Find(&reservations).Error; err != nil {
		return false, err
	}
	return availability.IsAvailable(availability.WindowOf(&listing), availability.FromReservations(reservations), start, end), nil
}

// Events returns the audit feed for listings the tenant owns, plus events the
// tenant acted on (so DELETED events stay visible to the actor).
func (s *Service) Events(ctx context.Context, tenant *domain.Tenant) ([]domain.ListingEvent, error) {
	var events []domain.ListingEvent
	sub := s.DB.Model(&domain.TenancyAssociation{}).Select("listing_id").Where("tenant_id = ?", tenant.ID)
	if err := s.DB.WithContext(ctx).
		Where("listing_id IN (?) OR actor_tenant_code = ?", sub, tenant.Code).
		Order("created_at DESC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// AssociatedCodes returns the codes of tenants associated with a listing.
func (s *Service) AssociatedCodes(ctx context.Context, listingID uint) ([]string, error) {
	var codes []string
	if err := s.DB.WithContext(ctx).
		Model(&domain.Tenant{}).
		Select("tenants.code").
		Joins("JOIN tenancy_associations ON tenancy_associations.tenant_id = tenants.id").
		Where("tenancy_associations.listing_id = ?", listingID).
		Order("tenants.code ASC").
		Scan(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}
