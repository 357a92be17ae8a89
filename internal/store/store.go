package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resource-pool-backend/internal/model"
)

// HistoryLimit bounds the per-user conversation history kept as chat context.
const HistoryLimit = 20

// ResourceAvailability is a resource annotated with its computed spare
// capacity.
type ResourceAvailability struct {
	model.Resource
	Available int `json:"available"`
}

// Store defines the persistence operations for the five pool collections plus
// conversation history.
type Store interface {
	DB() *gorm.DB

	// Transaction runs fn against a transaction-scoped store. Mutations made
	// through the scoped store commit or roll back as a unit.
	Transaction(ctx context.Context, fn func(Store) error) error

	// Catalog
	SeedCatalog(ctx context.Context, force bool) error
	GetResource(ctx context.Context, id string) (model.Resource, error)
	ListResources(ctx context.Context, typeFilter model.ResourceType) ([]ResourceAvailability, error)

	// Allocation ledger
	ActiveCount(ctx context.Context, resourceID string) (int64, error)
	CreateAssignment(ctx context.Context, resourceID, userID string, now time.Time, dueReturnAt *time.Time) (model.Assignment, error)
	ReleaseAssignment(ctx context.Context, assignmentID int64, now time.Time) (model.Assignment, error)
	FindActiveAssignment(ctx context.Context, resourceID, userID string) (model.Assignment, error)
	ListActiveAssignments(ctx context.Context, userID string) ([]model.Assignment, error)
	ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]model.Assignment, error)

	// Waitlist
	Enqueue(ctx context.Context, resourceID, userID string, now time.Time) (model.WaitlistEntry, int, error)
	DequeueHead(ctx context.Context, resourceID string) (*model.WaitlistEntry, error)
	WaitlistedResources(ctx context.Context, userID string) ([]string, error)

	// Utilization log
	RecordUtilization(ctx context.Context, entry model.UtilizationEntry) error
	QueryUtilization(ctx context.Context, resourceID, dateFrom, dateTo string) ([]model.UtilizationEntry, error)

	// Notifications
	AppendNotification(ctx context.Context, userID, message string, now time.Time) error
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	CountNotifications(ctx context.Context, userID string) (int64, error)
	ClearNotifications(ctx context.Context, userID string) error

	// Conversation history
	AppendConversation(ctx context.Context, userID, role, content string, now time.Time) error
	RecentConversation(ctx context.Context, userID string) ([]model.ConversationMessage, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// defaultResources is the fixed catalog used when the pool starts empty.
var defaultResources = []model.Resource{
	{ID: "proj-1", Type: model.TypeEquipment, Name: "Conference Projector", Quantity: 2},
	{ID: "cam-1", Type: model.TypeEquipment, Name: "Field Camera Kit", Quantity: 1, Metadata: map[string]string{"location": "storage room B"}},
	{ID: "lic-ide", Type: model.TypeLicense, Name: "IDE Ultimate License", Quantity: 5},
	{ID: "lic-cad", Type: model.TypeLicense, Name: "CAD Workstation License", Quantity: 2},
	{ID: "park-12", Type: model.TypeParking, Name: "Garage Spot 12", Quantity: 1},
	{ID: "park-visitor", Type: model.TypeParking, Name: "Visitor Spots", Quantity: 4},
}

// SeedCatalog populates the catalog with the default resource set when it is
// empty, or unconditionally when force is set (administrative reseed). The
// empty-catalog path is idempotent and safe to call on every startup.
func (s *gormStore) SeedCatalog(ctx context.Context, force bool) error {
	if !force {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Resource{}).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count resources: %w", err)
		}
		if count > 0 {
			return nil
		}
	}

	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "name", "quantity", "metadata", "updated_at"}),
	}).Create(&defaultResources).Error
}

func (s *gormStore) GetResource(ctx context.Context, id string) (model.Resource, error) {
	var resource model.Resource
	err := s.db.WithContext(ctx).First(&resource, "id = ?", id).Error
	return resource, err
}

// ListResources returns resources (optionally filtered by type), each
// annotated with available = quantity - active assignment count.
func (s *gormStore) ListResources(ctx context.Context, typeFilter model.ResourceType) ([]ResourceAvailability, error) {
	q := s.db.WithContext(ctx).Model(&model.Resource{})
	if typeFilter != "" {
		q = q.Where("type = ?", typeFilter)
	}

	var resources []model.Resource
	if err := q.Order("id").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	type aggRow struct {
		ResourceID  string
		ActiveCount int
	}
	var aggs []aggRow
	if err := s.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Select("resource_id as resource_id, COUNT(*) as active_count").
		Where("status = ?", model.AssignmentActive).
		Group("resource_id").
		Scan(&aggs).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate active assignments: %w", err)
	}

	activeMap := make(map[string]int, len(aggs))
	for _, a := range aggs {
		activeMap[a.ResourceID] = a.ActiveCount
	}

	result := make([]ResourceAvailability, 0, len(resources))
	for _, r := range resources {
		result = append(result, ResourceAvailability{
			Resource:  r,
			Available: r.Quantity - activeMap[r.ID],
		})
	}
	return result, nil
}

func (s *gormStore) ActiveCount(ctx context.Context, resourceID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Assignment{}).
		Where("resource_id = ? AND status = ?", resourceID, model.AssignmentActive).
		Count(&count).Error
	return count, err
}

// CreateAssignment appends a new active assignment. The caller must already
// have verified spare capacity.
func (s *gormStore) CreateAssignment(ctx context.Context, resourceID, userID string, now time.Time, dueReturnAt *time.Time) (model.Assignment, error) {
	assignment := model.Assignment{
		ResourceID:  resourceID,
		UserID:      userID,
		AssignedAt:  now,
		DueReturnAt: dueReturnAt,
		Status:      model.AssignmentActive,
	}
	if err := s.db.WithContext(ctx).Create(&assignment).Error; err != nil {
		return model.Assignment{}, fmt.Errorf("failed to create assignment: %w", err)
	}
	return assignment, nil
}

// ReleaseAssignment flips an active assignment to returned. Returns
// gorm.ErrRecordNotFound if no active assignment with that id exists.
func (s *gormStore) ReleaseAssignment(ctx context.Context, assignmentID int64, now time.Time) (model.Assignment, error) {
	var assignment model.Assignment
	err := s.db.WithContext(ctx).
		First(&assignment, "id = ? AND status = ?", assignmentID, model.AssignmentActive).Error
	if err != nil {
		return model.Assignment{}, err
	}

	assignment.Status = model.AssignmentReturned
	assignment.ReturnedAt = &now
	if err := s.db.WithContext(ctx).Save(&assignment).Error; err != nil {
		return model.Assignment{}, fmt.Errorf("failed to release assignment %d: %w", assignmentID, err)
	}
	return assignment, nil
}

func (s *gormStore) FindActiveAssignment(ctx context.Context, resourceID, userID string) (model.Assignment, error) {
	var assignment model.Assignment
	err := s.db.WithContext(ctx).
		Where("resource_id = ? AND user_id = ? AND status = ?", resourceID, userID, model.AssignmentActive).
		Order("assigned_at").
		First(&assignment).Error
	return assignment, err
}

func (s *gormStore) ListActiveAssignments(ctx context.Context, userID string) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.AssignmentActive).
		Order("assigned_at").
		Find(&assignments).Error
	return assignments, err
}

// ListAssignmentsDueBetween returns active assignments whose due date falls in
// the half-open window (from, to].
func (s *gormStore) ListAssignmentsDueBetween(ctx context.Context, from, to time.Time) ([]model.Assignment, error) {
	var assignments []model.Assignment
	err := s.db.WithContext(ctx).
		Where("status = ? AND due_return_at > ? AND due_return_at <= ?", model.AssignmentActive, from, to).
		Order("due_return_at").
		Find(&assignments).Error
	return assignments, err
}

// Enqueue appends a waitlist entry and computes its 1-based position among
// entries for the same resource, ordered by request time with the
// auto-increment id as tie-breaker.
func (s *gormStore) Enqueue(ctx context.Context, resourceID, userID string, now time.Time) (model.WaitlistEntry, int, error) {
	entry := model.WaitlistEntry{
		ResourceID:  resourceID,
		UserID:      userID,
		RequestedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return model.WaitlistEntry{}, 0, fmt.Errorf("failed to enqueue waitlist entry: %w", err)
	}

	var ahead int64
	err := s.db.WithContext(ctx).
		Model(&model.WaitlistEntry{}).
		Where("resource_id = ? AND (requested_at < ? OR (requested_at = ? AND id <= ?))",
			resourceID, entry.RequestedAt, entry.RequestedAt, entry.ID).
		Count(&ahead).Error
	if err != nil {
		return model.WaitlistEntry{}, 0, fmt.Errorf("failed to compute waitlist position: %w", err)
	}
	return entry, int(ahead), nil
}

// DequeueHead removes and returns the earliest-requested entry for the
// resource, or nil when the waitlist is empty.
func (s *gormStore) DequeueHead(ctx context.Context, resourceID string) (*model.WaitlistEntry, error) {
	var entry model.WaitlistEntry
	err := s.db.WithContext(ctx).
		Where("resource_id = ?", resourceID).
		Order("requested_at, id").
		First(&entry).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Delete(&model.WaitlistEntry{}, entry.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to remove waitlist entry %d: %w", entry.ID, err)
	}
	return &entry, nil
}

// WaitlistedResources returns the ids of resources the user is queued for, in
// request order.
func (s *gormStore) WaitlistedResources(ctx context.Context, userID string) ([]string, error) {
	var resourceIDs []string
	err := s.db.WithContext(ctx).
		Model(&model.WaitlistEntry{}).
		Where("user_id = ?", userID).
		Order("requested_at, id").
		Pluck("resource_id", &resourceIDs).Error
	return resourceIDs, err
}

// RecordUtilization writes a daily snapshot. The first writer for a
// (resource, date) pair wins; later writes the same day are silently dropped.
func (s *gormStore) RecordUtilization(ctx context.Context, entry model.UtilizationEntry) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "resource_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// QueryUtilization returns snapshots filtered by resource and inclusive date
// bounds. Dates compare lexicographically as ISO calendar-date strings.
func (s *gormStore) QueryUtilization(ctx context.Context, resourceID, dateFrom, dateTo string) ([]model.UtilizationEntry, error) {
	q := s.db.WithContext(ctx).Model(&model.UtilizationEntry{})
	if resourceID != "" {
		q = q.Where("resource_id = ?", resourceID)
	}
	if dateFrom != "" {
		q = q.Where("date >= ?", dateFrom)
	}
	if dateTo != "" {
		q = q.Where("date <= ?", dateTo)
	}

	var entries []model.UtilizationEntry
	err := q.Order("date, resource_id").Find(&entries).Error
	return entries, err
}

func (s *gormStore) AppendNotification(ctx context.Context, userID, message string, now time.Time) error {
	notification := model.Notification{
		UserID:    userID,
		Message:   message,
		CreatedAt: now,
	}
	return s.db.WithContext(ctx).Create(&notification).Error
}

func (s *gormStore) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	var notifications []model.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&notifications).Error
	return notifications, err
}

func (s *gormStore) CountNotifications(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

func (s *gormStore) ClearNotifications(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.Notification{}).Error
}

// AppendConversation records one chat turn and evicts the oldest turns beyond
// the per-user history bound.
func (s *gormStore) AppendConversation(ctx context.Context, userID, role, content string, now time.Time) error {
	message := model.ConversationMessage{
		UserID:    userID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return fmt.Errorf("failed to append conversation message: %w", err)
	}

	var keep []int64
	if err := s.db.WithContext(ctx).
		Model(&model.ConversationMessage{}).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(HistoryLimit).
		Pluck("id", &keep).Error; err != nil {
		return fmt.Errorf("failed to inspect conversation history: %w", err)
	}
	if len(keep) < HistoryLimit {
		return nil
	}

	return s.db.WithContext(ctx).
		Where("user_id = ? AND id < ?", userID, keep[len(keep)-1]).
		Delete(&model.ConversationMessage{}).Error
}

// RecentConversation returns the bounded history in chronological order.
func (s *gormStore) RecentConversation(ctx context.Context, userID string) ([]model.ConversationMessage, error) {
	var messages []model.ConversationMessage
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Limit(HistoryLimit).
		Find(&messages).Error
	return messages, err
}
