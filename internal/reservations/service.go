package reservations

import (
	"context"
	"errors"
	"time"

	"unihaven-backend/internal/availability"
	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/notify"
	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/pkg/txlock"
	"unihaven-backend/internal/tenants"

	"gorm.io/gorm"
)

// Service books and cancels reservation periods. The listing row is locked
// for the duration of each booking transaction so two overlapping requests
// cannot both pass the availability check.
type Service struct {
	DB      *gorm.DB
	Tenants *tenants.Service
	Notify  *notify.Dispatcher
}

// ReserveInput carries a booking request.
type ReserveInput struct {
	UserID        string
	ContactNumber string
	StartDate     time.Time
	EndDate       time.Time
}

// Reserve books [StartDate, EndDate] on the listing for the requester.
func (s *Service) Reserve(ctx context.Context, listingID uint, in ReserveInput) (*domain.ReservationPeriod, error) {
	if in.UserID == "" {
		return nil, apperrors.Validation("user_id is required")
	}
	if !availability.Date(in.StartDate).Before(availability.Date(in.EndDate)) {
		return nil, apperrors.Validation("start date must be before end date")
	}

	requesterTenant, err := s.Tenants.ResolveRequester(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	var created *domain.ReservationPeriod
	var listing domain.Listing
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := txlock.ForUpdate(tx).Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Listing not found")
			}
			return err
		}

		eligible, err := s.eligibleCodes(tx, listing.ID)
		if err != nil {
			return err
		}
		if len(eligible) > 0 {
			if requesterTenant == nil || !contains(eligible, requesterTenant.Code) {
				return apperrors.Forbidden("Requester's institution is not eligible for this listing").
					WithDetails(map[string]interface{}{"eligible_tenants": eligible})
			}
		}

		var existing []domain.ReservationPeriod
		if err := tx.Where("listing_id = ?", listing.ID).Find(&existing).Error; err != nil {
			return err
		}
		for _, r := range existing {
			if r.UserID == in.UserID {
				return apperrors.Conflict("You already have a reservation for this listing")
			}
		}
		if !availability.IsAvailable(availability.WindowOf(&listing), availability.FromReservations(existing), in.StartDate, in.EndDate) {
			return apperrors.Conflict("The requested period is not available")
		}

		created = &domain.ReservationPeriod{
			ListingID:      listing.ID,
			UserID:         in.UserID,
			ContactNumber:  in.ContactNumber,
			StartDate:      availability.Date(in.StartDate),
			EndDate:        availability.Date(in.EndDate),
			ContractStatus: false,
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}
		return domain.AppendEvent(tx, listing.ID, domain.EventReserved, nil, map[string]interface{}{
			"reservation_id": created.ID,
			"user_id":        in.UserID,
			"start_date":     created.StartDate.Format("2006-01-02"),
			"end_date":       created.EndDate.Format("2006-01-02"),
		})
	})
	if err != nil {
		return nil, err
	}

	specialist := ""
	if requesterTenant != nil {
		specialist = requesterTenant.SpecialistEmail
	}
	s.Notify.ReservationConfirmed(in.UserID, listing.Title, specialist)
	return created, nil
}

// Cancel removes a reservation. Only the user who made it may cancel, and a
// reservation under contract can only be released by a tenant specialist.
func (s *Service) Cancel(ctx context.Context, listingID, reservationID uint, userID string, actor *domain.Tenant) error {
	if userID == "" {
		return apperrors.Validation("user_id is required")
	}

	var listing domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := txlock.ForUpdate(tx).Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Listing not found")
			}
			return err
		}
		var reservation domain.ReservationPeriod
		if err := tx.Where("id = ? AND listing_id = ?", reservationID, listing.ID).First(&reservation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Reservation not found")
			}
			return err
		}
		if reservation.UserID != userID {
			return apperrors.Forbidden("Only the requester who made the reservation can cancel it")
		}
		if reservation.ContractStatus && actor == nil {
			return apperrors.Forbidden("A signed reservation can only be cancelled by a housing specialist")
		}
		if err := tx.Delete(&reservation).Error; err != nil {
			return err
		}
		var actorCode *string
		if actor != nil {
			actorCode = &actor.Code
		}
		return domain.AppendEvent(tx, listing.ID, domain.EventCancelled, actorCode, map[string]interface{}{
			"reservation_id": reservation.ID,
			"user_id":        userID,
		})
	})
	if err != nil {
		return err
	}

	specialist := ""
	if requesterTenant, rerr := s.Tenants.ResolveRequester(ctx, userID); rerr == nil && requesterTenant != nil {
		specialist = requesterTenant.SpecialistEmail
	}
	s.Notify.ReservationCancelled(userID, listing.Title, specialist)
	return nil
}

// SignContract marks a reservation as under contract. Only a specialist from
// a tenant holding the listing may sign.
func (s *Service) SignContract(ctx context.Context, listingID, reservationID uint, actor *domain.Tenant) (*domain.ReservationPeriod, error) {
	var reservation domain.ReservationPeriod
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var held int64
		if err := tx.Model(&domain.TenancyAssociation{}).
			Where("listing_id = ? AND tenant_id = ?", listingID, actor.ID).
			Count(&held).Error; err != nil {
			return err
		}
		if held == 0 {
			return apperrors.Forbidden("Only a tenant holding this listing can sign its contracts")
		}
		if err := tx.Where("id = ? AND listing_id = ?", reservationID, listingID).First(&reservation).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Reservation not found")
			}
			return err
		}
		if reservation.ContractStatus {
			return apperrors.Conflict("Reservation is already under contract")
		}
		reservation.ContractStatus = true
		return tx.Model(&reservation).Update("contract_status", true).Error
	})
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ListForUser returns the requester's reservations across all listings.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]domain.ReservationPeriod, error) {
	if userID == "" {
		return nil, apperrors.Validation("user_id is required")
	}
	var rows []domain.ReservationPeriod
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("start_date ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) eligibleCodes(tx *gorm.DB, listingID uint) ([]string, error) {
	var codes []string
	err := tx.Model(&domain.Tenant{}).
		Select("tenants.code").
		Joins("JOIN tenancy_associations ON tenancy_associations.tenant_id = tenants.id").
		Where("tenancy_associations.listing_id = ?", listingID).
		Order("tenants.code ASC").
		Scan(&codes).Error
	return codes, err
}

func contains(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
