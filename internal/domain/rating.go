package domain

import (
	"time"
)

// Rating is a single 0-5 score by a requester who has reserved the listing.
// At most one per (listing, user); never updated or deleted in normal flow.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_listing_user_rating" json:"listing_id"`
	UserID    string    `gorm:"size:255;not null;uniqueIndex:idx_listing_user_rating" json:"user_id"`
	Value     int       `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}
