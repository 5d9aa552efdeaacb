package domain

import (
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Listing types accepted by the API.
const (
	TypeApartment = "APARTMENT"
	TypeHouse     = "HOUSE"
	TypeHostel    = "HOSTEL"
)

// Listing is a shared housing unit. The aggregate root: reservation periods
// and ratings are owned by it and cascade-deleted with it.
type Listing struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Title       string  `gorm:"size:200;not null" json:"title"`
	Description string  `json:"description"`
	Type        string  `gorm:"size:20;not null" json:"type"`
	Price       float64 `gorm:"type:decimal(10,2);not null" json:"price"`
	Beds        int     `json:"beds"`
	Bedrooms    int     `json:"bedrooms"`

	// Availability window; absent means the listing is not bookable.
	AvailableFrom *time.Time `gorm:"type:date" json:"available_from"`
	AvailableTo   *time.Time `gorm:"type:date" json:"available_to"`

	ContactPhone string `gorm:"size:20" json:"contact_phone"`
	ContactEmail string `gorm:"size:254" json:"contact_email"`

	// Geocoded address fields from the ALS lookup.
	BuildingName string  `gorm:"size:200" json:"building_name"`
	EstateName   string  `gorm:"size:200" json:"estate_name"`
	StreetName   string  `gorm:"size:200" json:"street_name"`
	BuildingNo   string  `gorm:"size:20" json:"building_no"`
	District     string  `gorm:"size:200" json:"district"`
	Region       string  `gorm:"size:100" json:"region"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	GeoAddress   string  `gorm:"size:200" json:"geo_address"`

	// Physical-unit identifiers; empty string when not applicable so the
	// identity key is always fully defined.
	RoomNumber  string `gorm:"size:20" json:"room_number"`
	FloorNumber string `gorm:"size:20" json:"floor_number"`
	FlatNumber  string `gorm:"size:20" json:"flat_number"`

	// AddressKey is the derived identity key; the unique index is what makes
	// concurrent duplicate creation impossible.
	AddressKey string `gorm:"size:255;not null;uniqueIndex" json:"-"`

	// Denormalized rating aggregate, updated only in the same transaction as
	// the Rating insert.
	RatingSum   float64 `gorm:"default:0" json:"rating_sum"`
	RatingCount int     `gorm:"default:0" json:"rating_count"`
	Rating      float64 `gorm:"default:0" json:"rating"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BuildAddressKey derives the identity key from the normalized tuple
// (geo_address, room, floor, flat). Blank components stay empty strings so
// the key is total and the store-level unique index can arbitrate duplicates.
func BuildAddressKey(geoAddress, room, floor, flat string) string {
	parts := []string{geoAddress, room, floor, flat}
	for i, p := range parts {
		parts[i] = strings.ToUpper(strings.TrimSpace(p))
	}
	return strings.Join(parts, "|")
}

// FormattedAddress joins the non-empty display address parts.
func (l *Listing) FormattedAddress() string {
	street := strings.TrimSpace(l.BuildingNo + " " + l.StreetName)
	parts := []string{l.BuildingName, l.EstateName, street, l.District, l.Region}
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// RecalculateRating refreshes the derived rating from the counters.
func (l *Listing) RecalculateRating() {
	if l.RatingCount == 0 {
		l.Rating = 0
		return
	}
	l.Rating = math.Round(l.RatingSum/float64(l.RatingCount)*10) / 10
}

// BeforeSave keeps the derived key consistent if the address fields changed.
func (l *Listing) BeforeSave(tx *gorm.DB) error {
	if l.AddressKey == "" {
		l.AddressKey = BuildAddressKey(l.GeoAddress, l.RoomNumber, l.FloorNumber, l.FlatNumber)
	}
	return nil
}
