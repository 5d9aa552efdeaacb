package ratings

import (
	"context"
	"testing"
	"time"

	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/pkg/apperrors"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupRatingsTest(t *testing.T) (*Service, *gorm.DB, *domain.Listing) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Listing{}, &domain.ReservationPeriod{},
		&domain.Rating{}, &domain.ListingEvent{},
	))

	listing := &domain.Listing{Title: "Rated Flat", Type: domain.TypeApartment, Price: 7000, GeoAddress: "RATED FLAT"}
	require.NoError(t, db.Create(listing).Error)
	return &Service{DB: db}, db, listing
}

func reserveFor(t *testing.T, db *gorm.DB, listingID uint, userID string) {
	start, _ := time.Parse("2006-01-02", "2025-06-01")
	end, _ := time.Parse("2006-01-02", "2025-06-10")
	require.NoError(t, db.Create(&domain.ReservationPeriod{
		ListingID: listingID, UserID: userID, StartDate: start, EndDate: end,
	}).Error)
}

// Counters move with each rating and the displayed average is rounded to one
// decimal: 5 then 3 gives sum 8, count 2, rating 4.0.
func TestSubmit_AggregateMoves(t *testing.T) {
	svc, db, listing := setupRatingsTest(t)
	reserveFor(t, db, listing.ID, "HKU_3035001111")
	reserveFor(t, db, listing.ID, "HKU_3035002222")

	updated, err := svc.Submit(context.Background(), listing.ID, "HKU_3035001111", 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1, updated.RatingCount)
	assert.EqualValues(t, 5, updated.RatingSum)
	assert.EqualValues(t, 5.0, updated.Rating)

	updated, err = svc.Submit(context.Background(), listing.ID, "HKU_3035002222", 3)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated.RatingCount)
	assert.EqualValues(t, 8, updated.RatingSum)
	assert.EqualValues(t, 4.0, updated.Rating)

	// The stored row agrees with the returned aggregate.
	var stored domain.Listing
	require.NoError(t, db.First(&stored, listing.ID).Error)
	assert.EqualValues(t, 2, stored.RatingCount)
	assert.EqualValues(t, 8, stored.RatingSum)
	assert.EqualValues(t, 4.0, stored.Rating)
}

func TestSubmit_RoundsToOneDecimal(t *testing.T) {
	svc, db, listing := setupRatingsTest(t)
	for i, user := range []string{"HKU_1", "HKU_2", "HKU_3"} {
		reserveFor(t, db, listing.ID, user)
		value := []int{5, 4, 4}[i]
		_, err := svc.Submit(context.Background(), listing.ID, user, value)
		require.NoError(t, err)
	}
	var stored domain.Listing
	require.NoError(t, db.First(&stored, listing.ID).Error)
	// 13/3 = 4.333... -> 4.3
	assert.EqualValues(t, 4.3, stored.Rating)
}

func TestSubmit_DuplicateConflicts(t *testing.T) {
	svc, db, listing := setupRatingsTest(t)
	reserveFor(t, db, listing.ID, "HKU_3035001111")

	_, err := svc.Submit(context.Background(), listing.ID, "HKU_3035001111", 4)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), listing.ID, "HKU_3035001111", 2)
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, e.Kind)

	// The failed attempt moved nothing.
	var stored domain.Listing
	require.NoError(t, db.First(&stored, listing.ID).Error)
	assert.EqualValues(t, 1, stored.RatingCount)
	assert.EqualValues(t, 4, stored.RatingSum)
}

func TestSubmit_WithoutReservationForbidden(t *testing.T) {
	svc, _, listing := setupRatingsTest(t)

	_, err := svc.Submit(context.Background(), listing.ID, "HKU_3035001111", 4)
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindForbidden, e.Kind)
}

func TestSubmit_ValueOutOfRange(t *testing.T) {
	svc, db, listing := setupRatingsTest(t)
	reserveFor(t, db, listing.ID, "HKU_3035001111")

	for _, v := range []int{-1, 6} {
		_, err := svc.Submit(context.Background(), listing.ID, "HKU_3035001111", v)
		require.Error(t, err)
		e, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindValidation, e.Kind)
	}
}

func TestSubmit_ListingNotFound(t *testing.T) {
	svc, _, _ := setupRatingsTest(t)
	_, err := svc.Submit(context.Background(), 777, "HKU_3035001111", 4)
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindNotFound, e.Kind)
}

func TestListForListing(t *testing.T) {
	svc, db, listing := setupRatingsTest(t)
	reserveFor(t, db, listing.ID, "HKU_3035001111")
	_, err := svc.Submit(context.Background(), listing.ID, "HKU_3035001111", 4)
	require.NoError(t, err)

	rows, err := svc.ListForListing(context.Background(), listing.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Value)
}
