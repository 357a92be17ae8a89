package model

import "time"

// WaitlistEntry is a pending request for a resource that had no spare capacity
// at request time. Entries for the same resource are served strictly by
// ascending RequestedAt; the auto-increment ID breaks timestamp ties so the
// order stays stable under equal clocks. Priority is reserved and does not
// affect ordering.
type WaitlistEntry struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ResourceID  string    `gorm:"size:64;index;not null" json:"resourceId"`
	UserID      string    `gorm:"size:128;index;not null" json:"userId"`
	RequestedAt time.Time `gorm:"index;not null" json:"requestedAt"`
	Priority    int       `json:"priority,omitempty"`
}
