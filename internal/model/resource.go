package model

import "time"

// ResourceType classifies the kinds of shared resources the pool manages.
type ResourceType string

const (
	TypeEquipment ResourceType = "equipment"
	TypeLicense   ResourceType = "license"
	TypeParking   ResourceType = "parking"
)

// Resource is a named, quantity-limited shared item. Immutable after creation
// except by administrative reseed.
type Resource struct {
	ID        string            `gorm:"primaryKey;size:64" json:"id"`
	Type      ResourceType      `gorm:"size:32;index;not null" json:"type"`
	Name      string            `gorm:"size:256;not null" json:"name"`
	Quantity  int               `gorm:"not null" json:"quantity"`
	Metadata  map[string]string `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"-"`
	UpdatedAt time.Time         `gorm:"not null" json:"-"`
}
