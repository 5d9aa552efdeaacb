package ratings

import (
	"context"
	"errors"

	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/pkg/txlock"

	"gorm.io/gorm"
)

// Service maintains per-listing rating aggregates. The sum and count live on
// the listing row and move in the same transaction as the rating insert, so
// the average never drifts from the individual ratings.
type Service struct {
	DB *gorm.DB
}

// Submit records a rating from a user who has reserved the listing. One
// rating per user per listing.
func (s *Service) Submit(ctx context.Context, listingID uint, userID string, value int) (*domain.Listing, error) {
	if userID == "" {
		return nil, apperrors.Validation("user_id is required")
	}
	if value < 0 || value > 5 {
		return nil, apperrors.Validation("rating must be between 0 and 5")
	}

	var listing domain.Listing
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := txlock.ForUpdate(tx).Where("id = ?", listingID).First(&listing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("Listing not found")
			}
			return err
		}

		var reserved int64
		if err := tx.Model(&domain.ReservationPeriod{}).
			Where("listing_id = ? AND user_id = ?", listing.ID, userID).
			Count(&reserved).Error; err != nil {
			return err
		}
		if reserved == 0 {
			return apperrors.Forbidden("Only users who reserved this listing can rate it")
		}

		var prior int64
		if err := tx.Model(&domain.Rating{}).
			Where("listing_id = ? AND user_id = ?", listing.ID, userID).
			Count(&prior).Error; err != nil {
			return err
		}
		if prior > 0 {
			return apperrors.Conflict("You have already rated this listing")
		}

		if err := tx.Create(&domain.Rating{ListingID: listing.ID, UserID: userID, Value: value}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.Conflict("You have already rated this listing")
			}
			return err
		}

		listing.RatingSum += float64(value)
		listing.RatingCount++
		listing.RecalculateRating()
		if err := tx.Model(&listing).Updates(map[string]interface{}{
			"rating_sum":   listing.RatingSum,
			"rating_count": listing.RatingCount,
			"rating":       listing.Rating,
		}).Error; err != nil {
			return err
		}
		return domain.AppendEvent(tx, listing.ID, domain.EventRated, nil, map[string]interface{}{
			"user_id": userID,
			"value":   value,
			"rating":  listing.Rating,
		})
	})
	if err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListForListing returns all ratings recorded for a listing.
func (s *Service) ListForListing(ctx context.Context, listingID uint) ([]domain.Rating, error) {
	var rows []domain.Rating
	if err := s.DB.WithContext(ctx).Where("listing_id = ?", listingID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
