package domain

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing event types.
const (
	EventCreated   = "CREATED"
	EventMerged    = "MERGED"
	EventDetached  = "DETACHED"
	EventDeleted   = "DELETED"
	EventReserved  = "RESERVED"
	EventCancelled = "CANCELLED"
	EventRated     = "RATED"
)

// ListingEvent is an audit record appended in the same transaction as the
// state change it describes.
type ListingEvent struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	ListingID       uint           `gorm:"not null;index" json:"listing_id"`
	EventType       string         `gorm:"size:20;not null" json:"event_type"`
	ActorTenantCode *string        `gorm:"size:20" json:"actor_tenant_code"`
	EventData       datatypes.JSON `json:"event_data"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// AppendEvent writes an audit event inside the caller's transaction.
func AppendEvent(tx *gorm.DB, listingID uint, eventType string, actorCode *string, payload map[string]interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return tx.Create(&ListingEvent{
		ListingID:       listingID,
		EventType:       eventType,
		ActorTenantCode: actorCode,
		EventData:       datatypes.JSON(data),
	}).Error
}
