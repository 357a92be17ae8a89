package model

// UtilizationEntry is a daily snapshot of allocated-vs-total counts for one
// resource. At most one entry exists per (resource, date) pair; the first
// writer for a day wins and the row is never updated afterwards. Date is an
// ISO calendar-date string (YYYY-MM-DD) so range filtering can compare
// lexicographically.
type UtilizationEntry struct {
	ResourceID string `gorm:"primaryKey;size:64" json:"resourceId"`
	Date       string `gorm:"primaryKey;size:10" json:"date"`
	Allocated  int    `gorm:"not null" json:"allocated"`
	Total      int    `gorm:"not null" json:"total"`
}
