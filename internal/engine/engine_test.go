package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"resource-pool-backend/internal/db"
	"resource-pool-backend/internal/model"
	"resource-pool-backend/internal/store"
)

// fakeNotifier records dispatched push messages.
type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(userID, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, userID+": "+message)
}

func (f *fakeNotifier) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func newTestEngine(t *testing.T) (*Engine, store.Store, *fakeNotifier) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	s := store.NewGormStore(gormDB)
	notifier := &fakeNotifier{}
	return New(s, notifier, time.UTC), s, notifier
}

func seedResource(t *testing.T, s store.Store, id string, quantity int) {
	t.Helper()
	resource := model.Resource{ID: id, Type: model.TypeEquipment, Name: "Resource " + id, Quantity: quantity}
	require.NoError(t, s.DB().Create(&resource).Error)
}

func activeCount(t *testing.T, s store.Store, resourceID string) int64 {
	t.Helper()
	count, err := s.ActiveCount(context.Background(), resourceID)
	require.NoError(t, err)
	return count
}

func TestRequestUnknownResource(t *testing.T) {
	e, _, _ := newTestEngine(t)

	_, err := e.RequestResource(context.Background(), "ghost", "alice", nil)
	assert.ErrorIs(t, err, ErrUnknownResource)
}

func TestRequestGrantsUntilCapacityThenQueues(t *testing.T) {
	e, s, notifier := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "cam", 2)

	first, err := e.RequestResource(ctx, "cam", "alice", nil)
	require.NoError(t, err)
	assert.True(t, first.Granted)
	assert.NotZero(t, first.AssignmentID)

	second, err := e.RequestResource(ctx, "cam", "bob", nil)
	require.NoError(t, err)
	assert.True(t, second.Granted)

	third, err := e.RequestResource(ctx, "cam", "carol", nil)
	require.NoError(t, err)
	assert.False(t, third.Granted)
	assert.Equal(t, 1, third.WaitlistPosition)

	fourth, err := e.RequestResource(ctx, "cam", "dave", nil)
	require.NoError(t, err)
	assert.False(t, fourth.Granted)
	assert.Equal(t, 2, fourth.WaitlistPosition)

	// Capacity invariant: active assignments never exceed quantity.
	assert.Equal(t, int64(2), activeCount(t, s, "cam"))

	// Queued users got a best-effort push with their position.
	pushes := notifier.all()
	require.Len(t, pushes, 2)
	assert.Contains(t, pushes[0], "carol")
	assert.Contains(t, pushes[0], "#1")
	assert.Contains(t, pushes[1], "dave")
	assert.Contains(t, pushes[1], "#2")
}

func TestReturnPromotesWaitlistHead(t *testing.T) {
	e, s, notifier := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "P1", 1)

	granted, err := e.RequestResource(ctx, "P1", "alice", nil)
	require.NoError(t, err)
	require.True(t, granted.Granted)

	queued, err := e.RequestResource(ctx, "P1", "bob", nil)
	require.NoError(t, err)
	require.False(t, queued.Granted)
	require.Equal(t, 1, queued.WaitlistPosition)

	result, err := e.ReturnResource(ctx, "P1", "alice")
	require.NoError(t, err)
	assert.True(t, result.Returned)
	assert.Equal(t, "bob", result.AutoAssignedUserID)

	// Bob now holds an active assignment for P1.
	assignments, err := e.ListMyAssignments(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "P1", assignments[0].ResourceID)
	assert.Equal(t, model.AssignmentActive, assignments[0].Status)

	// No idle-with-queue: the returned unit went straight to bob.
	assert.Equal(t, int64(1), activeCount(t, s, "P1"))

	// Bob got an in-app notification and a push.
	notifications, err := e.Notifications(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "assigned to you")

	var sawPromotion bool
	for _, push := range notifier.all() {
		if strings.HasPrefix(push, "bob: ") && strings.Contains(push, "assigned to you") {
			sawPromotion = true
		}
	}
	assert.True(t, sawPromotion, "promotion push should have been dispatched")
}

func TestFIFOFairness(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "cam", 1)

	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	clock := base
	e.now = func() time.Time { return clock }

	_, err := e.RequestResource(ctx, "cam", "holder", nil)
	require.NoError(t, err)

	for i, user := range []string{"first", "second", "third"} {
		clock = base.Add(time.Duration(i+1) * time.Minute)
		result, err := e.RequestResource(ctx, "cam", user, nil)
		require.NoError(t, err)
		require.False(t, result.Granted)
		require.Equal(t, i+1, result.WaitlistPosition)
	}

	// Returns promote strictly in request order.
	holder := "holder"
	for _, want := range []string{"first", "second", "third"} {
		clock = clock.Add(time.Minute)
		result, err := e.ReturnResource(ctx, "cam", holder)
		require.NoError(t, err)
		assert.Equal(t, want, result.AutoAssignedUserID)
		holder = want
	}
}

func TestSelfQueueBehindOwnAssignment(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "P1", 1)

	granted, err := e.RequestResource(ctx, "P1", "alice", nil)
	require.NoError(t, err)
	require.True(t, granted.Granted)

	// No implicit dedup: alice queues behind herself.
	again, err := e.RequestResource(ctx, "P1", "alice", nil)
	require.NoError(t, err)
	assert.False(t, again.Granted)
	assert.Equal(t, 1, again.WaitlistPosition)

	// Returning promotes her own waitlist entry.
	result, err := e.ReturnResource(ctx, "P1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", result.AutoAssignedUserID)
}

func TestReturnWithoutAssignment(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "X", 1)

	_, err := e.ReturnResource(ctx, "X", "alice")
	assert.ErrorIs(t, err, ErrNoActiveAssignment)

	// No state mutation happened.
	var assignments, waitlist int64
	require.NoError(t, s.DB().Model(&model.Assignment{}).Count(&assignments).Error)
	require.NoError(t, s.DB().Model(&model.WaitlistEntry{}).Count(&waitlist).Error)
	assert.Zero(t, assignments)
	assert.Zero(t, waitlist)
}

func TestReturnDoesNotPromoteOtherResources(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "cam", 1)
	seedResource(t, s, "park", 1)

	_, err := e.RequestResource(ctx, "cam", "alice", nil)
	require.NoError(t, err)
	_, err = e.RequestResource(ctx, "park", "bob", nil)
	require.NoError(t, err)
	_, err = e.RequestResource(ctx, "park", "carol", nil)
	require.NoError(t, err)

	result, err := e.ReturnResource(ctx, "cam", "alice")
	require.NoError(t, err)
	assert.Empty(t, result.AutoAssignedUserID, "cam has no waitlist; park's queue must not be touched")
	assert.Equal(t, int64(1), activeCount(t, s, "park"))
}

func TestCheckReturnReminders(t *testing.T) {
	e, s, notifier := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "cam", 2)
	seedResource(t, s, "empty", 0)

	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	dueSoon := now.Add(12 * time.Hour)
	dueLater := now.Add(48 * time.Hour)
	dueElapsed := now.Add(-2 * time.Hour)

	_, err := s.CreateAssignment(ctx, "cam", "alice", now.Add(-24*time.Hour), &dueSoon)
	require.NoError(t, err)
	_, err = s.CreateAssignment(ctx, "cam", "bob", now.Add(-24*time.Hour), &dueLater)
	require.NoError(t, err)
	_, err = s.CreateAssignment(ctx, "cam", "carol", now.Add(-24*time.Hour), &dueElapsed)
	require.NoError(t, err)

	require.NoError(t, e.CheckReturnReminders(ctx))

	// Only the assignment due within the next 24 hours is reminded. No due
	// date or an elapsed due date means no reminder.
	aliceNotifications, err := e.Notifications(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceNotifications, 1)
	assert.Contains(t, aliceNotifications[0].Message, "due back")

	for _, user := range []string{"bob", "carol"} {
		notifications, err := e.Notifications(ctx, user)
		require.NoError(t, err)
		assert.Empty(t, notifications, "%s should not be reminded", user)
	}

	pushes := notifier.all()
	require.Len(t, pushes, 1)
	assert.True(t, strings.HasPrefix(pushes[0], "alice: "))

	// One snapshot per resource for today.
	records, err := e.GetUtilization(ctx, "", "", "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := make(map[string]UtilizationRecord)
	for _, rec := range records {
		byID[rec.ResourceID] = rec
	}
	// carol's overdue assignment is still active, so cam is fully allocated.
	assert.Equal(t, 3, byID["cam"].Allocated)
	assert.Equal(t, 2, byID["cam"].Total)

	// Zero-quantity resources report 0 utilization, not a fault.
	assert.Equal(t, 0, byID["empty"].Total)
	assert.Equal(t, float64(0), byID["empty"].Utilization)
}

func TestSweepIdempotentPerDay(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "cam", 2)

	now := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	require.NoError(t, e.CheckReturnReminders(ctx))

	// State changes between sweeps must not alter the day's snapshot.
	_, err := e.RequestResource(ctx, "cam", "alice", nil)
	require.NoError(t, err)

	now = now.Add(3 * time.Hour)
	require.NoError(t, e.CheckReturnReminders(ctx))

	records, err := e.GetUtilization(ctx, "cam", "", "")
	require.NoError(t, err)
	require.Len(t, records, 1, "re-running the sweep the same day must not duplicate entries")
	assert.Equal(t, 0, records[0].Allocated, "first writer wins for the day")

	// The next calendar day gets its own entry.
	now = now.Add(24 * time.Hour)
	require.NoError(t, e.CheckReturnReminders(ctx))

	records, err = e.GetUtilization(ctx, "cam", "2026-08-25", "2026-08-26")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestGetUtilizationDefaultsToToday(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return now }

	require.NoError(t, s.RecordUtilization(ctx, model.UtilizationEntry{ResourceID: "cam", Date: "2026-08-24", Allocated: 1, Total: 2}))
	require.NoError(t, s.RecordUtilization(ctx, model.UtilizationEntry{ResourceID: "cam", Date: "2026-08-25", Allocated: 2, Total: 2}))

	records, err := e.GetUtilization(ctx, "", "", "")
	require.NoError(t, err)
	require.Len(t, records, 1, "no bounds means today only")
	assert.Equal(t, "2026-08-25", records[0].Date)
	assert.Equal(t, 1.0, records[0].Utilization)
}

func TestContextSummary(t *testing.T) {
	e, s, _ := newTestEngine(t)
	ctx := context.Background()
	seedResource(t, s, "cam", 1)
	seedResource(t, s, "park", 1)

	_, err := e.RequestResource(ctx, "cam", "alice", nil)
	require.NoError(t, err)
	_, err = e.RequestResource(ctx, "park", "bob", nil)
	require.NoError(t, err)
	_, err = e.RequestResource(ctx, "park", "alice", nil)
	require.NoError(t, err)
	require.NoError(t, s.AppendNotification(ctx, "alice", "hello", time.Now().UTC()))

	summary, err := e.ContextSummary(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, summary, "cam")
	assert.Contains(t, summary, "Waitlisted for: park")
	assert.Contains(t, summary, "Unread notifications: 1")
}
