package model

import "time"

// ConversationMessage is one turn of a user's chat history. History is kept
// only as context for freeform replies, bounded to the most recent turns per
// user, and is not authoritative state.
type ConversationMessage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    string    `gorm:"size:128;index;not null" json:"-"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Content   string    `gorm:"size:2048;not null" json:"content"`
	CreatedAt time.Time `gorm:"not null" json:"-"`
}
