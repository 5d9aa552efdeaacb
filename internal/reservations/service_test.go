package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"unihaven-backend/internal/domain"
	"unihaven-backend/internal/notify"
	"unihaven-backend/internal/pkg/apperrors"
	"unihaven-backend/internal/tenants"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingMailer captures sends so tests can assert on notifications without
// real delivery.
type recordingMailer struct {
	mu    sync.Mutex
	sends []string
}

func (m *recordingMailer) Send(_ context.Context, toEmail, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, toEmail+"|"+subject)
	return nil
}

func setupReservationsTest(t *testing.T) (*Service, *gorm.DB, *recordingMailer) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.Tenant{}, &domain.TenantAPIKey{}, &domain.Listing{},
		&domain.TenancyAssociation{}, &domain.ReservationPeriod{},
		&domain.Rating{}, &domain.ListingEvent{},
	))
	mailer := &recordingMailer{}
	svc := &Service{
		DB:      db,
		Tenants: &tenants.Service{DB: db},
		Notify:  &notify.Dispatcher{Mailer: mailer},
	}
	return svc, db, mailer
}

func date(t *testing.T, s string) time.Time {
	parsed, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return parsed.UTC()
}

func makeListing(t *testing.T, db *gorm.DB, from, to string) *domain.Listing {
	listing := &domain.Listing{
		Title:      "Test Flat",
		Type:       domain.TypeApartment,
		Price:      9000,
		GeoAddress: "TEST " + from + to,
	}
	f := date(t, from)
	u := date(t, to)
	listing.AvailableFrom = &f
	listing.AvailableTo = &u
	require.NoError(t, db.Create(listing).Error)
	return listing
}

func associate(t *testing.T, db *gorm.DB, listing *domain.Listing, code string) *domain.Tenant {
	tenant := &domain.Tenant{Code: code, Name: code, SpecialistEmail: "housing@" + code + ".test"}
	require.NoError(t, db.Create(tenant).Error)
	require.NoError(t, db.Create(&domain.TenancyAssociation{ListingID: listing.ID, TenantID: tenant.ID}).Error)
	return tenant
}

func TestReserve_Success(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")

	reservation, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)
	assert.NotZero(t, reservation.ID)
	assert.False(t, reservation.ContractStatus)

	var event domain.ListingEvent
	require.NoError(t, db.Where("listing_id = ? AND event_type = ?", listing.ID, domain.EventReserved).First(&event).Error)
}

func TestReserve_OverlapConflicts(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")

	_, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)

	// Touching the booked end date is still an overlap.
	_, err = svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035009999",
		StartDate: date(t, "2025-06-10"),
		EndDate:   date(t, "2025-06-20"),
	})
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, e.Kind)

	// The day after is free.
	_, err = svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035009999",
		StartDate: date(t, "2025-06-11"),
		EndDate:   date(t, "2025-06-20"),
	})
	require.NoError(t, err)
}

func TestReserve_OutsideWindowConflicts(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")

	_, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-04-20"),
		EndDate:   date(t, "2025-05-05"),
	})
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, e.Kind)
}

// A reservation interval is strictly start < end; a same-day request is
// invalid input, not a booking.
func TestReserve_SameDayRejected(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")

	for _, in := range []ReserveInput{
		{UserID: "HKU_3035001234", StartDate: date(t, "2025-06-01"), EndDate: date(t, "2025-06-01")},
		{UserID: "HKU_3035001234", StartDate: date(t, "2025-06-02"), EndDate: date(t, "2025-06-01")},
	} {
		_, err := svc.Reserve(context.Background(), listing.ID, in)
		require.Error(t, err)
		e, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindValidation, e.Kind)
	}

	var count int64
	require.NoError(t, db.Model(&domain.ReservationPeriod{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}

func TestReserve_SecondReservationBySameUserConflicts(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")

	_, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-07-01"),
		EndDate:   date(t, "2025-07-10"),
	})
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, e.Kind)
}

func TestReserve_IneligibleInstitutionForbidden(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")
	associate(t, db, listing, "HKU")

	// A CUHK student cannot book an HKU-only listing.
	cuhk := &domain.Tenant{Code: "CUHK", Name: "CUHK", SpecialistEmail: "housing@cuhk.test"}
	require.NoError(t, db.Create(cuhk).Error)

	_, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "CUHK_1155001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindForbidden, e.Kind)
	assert.Equal(t, []string{"HKU"}, e.Details["eligible_tenants"])

	// The HKU student can.
	_, err = svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)
}

func TestReserve_UnknownPrefixForbiddenWhenListingHeld(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")
	associate(t, db, listing, "HKU")

	_, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "someone-else",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindForbidden, e.Kind)
}

func TestReserve_ListingNotFound(t *testing.T) {
	svc, _, _ := setupReservationsTest(t)
	_, err := svc.Reserve(context.Background(), 4242, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindNotFound, e.Kind)
}

// Cancelling frees the interval for the next booking.
func TestCancel_ThenRebook(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")

	reservation, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), listing.ID, reservation.ID, "HKU_3035001234", nil))

	var count int64
	require.NoError(t, db.Model(&domain.ReservationPeriod{}).Where("listing_id = ?", listing.ID).Count(&count).Error)
	assert.EqualValues(t, 0, count)

	_, err = svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035009999",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)
}

func TestCancel_WrongUserForbidden(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")

	reservation, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), listing.ID, reservation.ID, "HKU_3035009999", nil)
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindForbidden, e.Kind)
}

func TestCancel_ContractLockedNeedsSpecialist(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")
	hku := associate(t, db, listing, "HKU")

	reservation, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)

	_, err = svc.SignContract(context.Background(), listing.ID, reservation.ID, hku)
	require.NoError(t, err)

	// The requester alone can no longer cancel.
	err = svc.Cancel(context.Background(), listing.ID, reservation.ID, "HKU_3035001234", nil)
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindForbidden, e.Kind)

	// A specialist acting for the requester can.
	require.NoError(t, svc.Cancel(context.Background(), listing.ID, reservation.ID, "HKU_3035001234", hku))
}

func TestSignContract_Twice(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")
	hku := associate(t, db, listing, "HKU")

	reservation, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)

	signed, err := svc.SignContract(context.Background(), listing.ID, reservation.ID, hku)
	require.NoError(t, err)
	assert.True(t, signed.ContractStatus)

	_, err = svc.SignContract(context.Background(), listing.ID, reservation.ID, hku)
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindConflict, e.Kind)
}

// A tenant with no stake in the listing cannot lock its reservations.
func TestSignContract_UnassociatedTenantForbidden(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	listing := makeListing(t, db, "2025-05-01", "2025-10-01")
	associate(t, db, listing, "HKU")

	cuhk := &domain.Tenant{Code: "CUHK", Name: "CUHK", SpecialistEmail: "housing@cuhk.test"}
	require.NoError(t, db.Create(cuhk).Error)

	reservation, err := svc.Reserve(context.Background(), listing.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)

	_, err = svc.SignContract(context.Background(), listing.ID, reservation.ID, cuhk)
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.KindForbidden, e.Kind)

	// The reservation is untouched and the requester can still cancel.
	var stored domain.ReservationPeriod
	require.NoError(t, db.First(&stored, reservation.ID).Error)
	assert.False(t, stored.ContractStatus)
	require.NoError(t, svc.Cancel(context.Background(), listing.ID, reservation.ID, "HKU_3035001234", nil))
}

func TestListForUser(t *testing.T) {
	svc, db, _ := setupReservationsTest(t)
	a := makeListing(t, db, "2025-05-01", "2025-10-01")
	b := makeListing(t, db, "2025-05-02", "2025-10-02")

	_, err := svc.Reserve(context.Background(), a.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-06-01"),
		EndDate:   date(t, "2025-06-10"),
	})
	require.NoError(t, err)
	_, err = svc.Reserve(context.Background(), b.ID, ReserveInput{
		UserID:    "HKU_3035001234",
		StartDate: date(t, "2025-07-01"),
		EndDate:   date(t, "2025-07-10"),
	})
	require.NoError(t, err)

	rows, err := svc.ListForUser(context.Background(), "HKU_3035001234")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	none, err := svc.ListForUser(context.Background(), "HKU_0000000000")
	require.NoError(t, err)
	assert.Empty(t, none)
}
