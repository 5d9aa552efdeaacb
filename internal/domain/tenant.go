package domain

import (
	"time"
)

// Tenant is an organization (e.g. a university) with partial ownership of
// shared listings.
type Tenant struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Code            string    `gorm:"size:20;not null;uniqueIndex" json:"code"`
	Name            string    `gorm:"size:200;not null" json:"name"`
	SpecialistEmail string    `gorm:"size:254;not null" json:"specialist_email"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// TenantAPIKey holds the bcrypt hash of an issued key. The plaintext is shown
// once at issue time and never stored.
type TenantAPIKey struct {
	ID       uint       `gorm:"primaryKey" json:"id"`
	TenantID uint       `gorm:"not null;index" json:"tenant_id"`
	KeyHash  string     `gorm:"size:100;not null" json:"-"`
	Active   bool       `gorm:"default:true" json:"active"`
	LastUsed *time.Time `json:"last_used"`

	CreatedAt time.Time `json:"createdAt"`
}

// TenancyAssociation links a Tenant to a Listing. A listing with zero
// associations must not outlive the transaction that removed the last one.
type TenancyAssociation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_listing_tenant" json:"listing_id"`
	TenantID  uint      `gorm:"not null;uniqueIndex:idx_listing_tenant" json:"tenant_id"`
	CreatedAt time.Time `json:"createdAt"`
}
