package database

import (
	"unihaven-backend/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") when using connection poolers.
// TranslateError makes unique-constraint violations surface as
// gorm.ErrDuplicatedKey, which the merge path relies on.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{TranslateError: true})
}

// AutoMigrate runs migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Tenant{},
		&domain.TenantAPIKey{},
		&domain.Listing{},
		&domain.TenancyAssociation{},
		&domain.ReservationPeriod{},
		&domain.Rating{},
		&domain.ListingEvent{},
	)
}
