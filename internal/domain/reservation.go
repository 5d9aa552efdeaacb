package domain

import (
	"time"
)

// ReservationPeriod is an exclusive date interval booked against a listing.
// Created by reserve, destroyed by cancel, never mutated otherwise.
type ReservationPeriod struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ListingID     uint      `gorm:"not null;index" json:"listing_id"`
	UserID        string    `gorm:"size:255;not null;index" json:"user_id"`
	ContactNumber string    `gorm:"size:20" json:"contact_number"`
	StartDate     time.Time `gorm:"type:date;not null" json:"start_date"`
	EndDate       time.Time `gorm:"type:date;not null" json:"end_date"`

	// A signed contract locks the reservation: only a tenant specialist may
	// cancel it.
	ContractStatus bool `gorm:"default:false" json:"contract_status"`

	CreatedAt time.Time `json:"createdAt"`
}
