package model

import "time"

// Notification is a pending in-app message for a user. The queue is
// append-only until the user explicitly clears it.
type Notification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:128;index;not null" json:"userId"`
	Message   string    `gorm:"size:512;not null" json:"message"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}
