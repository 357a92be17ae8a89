package model

import "time"

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentReturned AssignmentStatus = "returned"
)

// Assignment binds one unit of a resource to one user. Assignments transition
// active -> returned exactly once and are retained as history, never deleted.
type Assignment struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ResourceID  string           `gorm:"size:64;index;not null" json:"resourceId"`
	UserID      string           `gorm:"size:128;index;not null" json:"userId"`
	AssignedAt  time.Time        `gorm:"not null" json:"assignedAt"`
	DueReturnAt *time.Time       `json:"dueReturnAt,omitempty"`
	ReturnedAt  *time.Time       `json:"returnedAt,omitempty"`
	Status      AssignmentStatus `gorm:"size:16;index;not null" json:"status"`
}
