// Package engine implements the resource arbitration core: a single-writer
// state machine that turns request/return events into assignments, maintains a
// FIFO waitlist per resource, promotes the waitlist head on return, and
// derives utilization snapshots from a daily sweep.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"resource-pool-backend/internal/model"
	"resource-pool-backend/internal/store"
)

// Business failures returned as structured results to the immediate caller.
var (
	ErrUnknownResource    = errors.New("unknown resource")
	ErrNoActiveAssignment = errors.New("no active assignment")
)

// Notifier delivers a best-effort external notification. Implementations must
// not block and must swallow delivery failures.
type Notifier interface {
	Notify(userID, message string)
}

// Engine serializes every public operation behind one mutex so that
// check-then-act sequences against the ledger and waitlist are atomic. Each
// operation's mutations additionally run in a single database transaction;
// external notifications are dispatched only after the transaction commits.
type Engine struct {
	mu       sync.Mutex
	store    store.Store
	notifier Notifier
	loc      *time.Location
	now      func() time.Time
}

// New creates an engine. A nil notifier disables external notifications and a
// nil location defaults to UTC for calendar-date computations.
func New(s store.Store, notifier Notifier, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		store:    s,
		notifier: notifier,
		loc:      loc,
		now:      time.Now,
	}
}

// RequestResult reports the outcome of a resource request.
type RequestResult struct {
	Granted          bool   `json:"granted"`
	AssignmentID     int64  `json:"assignmentId,omitempty"`
	WaitlistPosition int    `json:"waitlistPosition,omitempty"`
	Message          string `json:"message"`
}

// ReturnResult reports the outcome of a resource return.
type ReturnResult struct {
	Returned           bool   `json:"returned"`
	AutoAssignedUserID string `json:"autoAssignedUserId,omitempty"`
	Message            string `json:"message"`
}

// UtilizationRecord is one daily snapshot annotated with its ratio.
type UtilizationRecord struct {
	ResourceID  string  `json:"resourceId"`
	Date        string  `json:"date"`
	Allocated   int     `json:"allocated"`
	Total       int     `json:"total"`
	Utilization float64 `json:"utilization"`
}

type pendingPush struct {
	userID  string
	message string
}

// RequestResource grants a unit when capacity is spare, otherwise enqueues the
// caller on the resource's waitlist. The capacity check and the resulting
// mutation execute as one transaction inside the engine's critical section.
func (e *Engine) RequestResource(ctx context.Context, resourceID, userID string, dueReturnAt *time.Time) (RequestResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	var result RequestResult
	var push *pendingPush

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		resource, err := tx.GetResource(ctx, resourceID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUnknownResource
		}
		if err != nil {
			return err
		}

		active, err := tx.ActiveCount(ctx, resourceID)
		if err != nil {
			return err
		}

		if active < int64(resource.Quantity) {
			assignment, err := tx.CreateAssignment(ctx, resourceID, userID, now, dueReturnAt)
			if err != nil {
				return err
			}
			result = RequestResult{
				Granted:      true,
				AssignmentID: assignment.ID,
				Message:      fmt.Sprintf("%s is yours. Return it with \"return %s\" when you are done.", resource.Name, resource.ID),
			}
			return nil
		}

		_, position, err := tx.Enqueue(ctx, resourceID, userID, now)
		if err != nil {
			return err
		}
		result = RequestResult{
			Granted:          false,
			WaitlistPosition: position,
			Message:          fmt.Sprintf("%s has no units available. You are #%d on the waitlist.", resource.Name, position),
		}
		push = &pendingPush{
			userID:  userID,
			message: fmt.Sprintf("You are #%d in line for %s.", position, resource.Name),
		}
		return nil
	})
	if err != nil {
		return RequestResult{}, err
	}

	if push != nil {
		e.dispatch(*push)
	}
	return result, nil
}

// ReturnResource releases the caller's active assignment and, within the same
// transaction, promotes the head of the resource's waitlist so that no unit
// sits idle while someone is queued for it.
func (e *Engine) ReturnResource(ctx context.Context, resourceID, userID string) (ReturnResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	var result ReturnResult
	var push *pendingPush

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		assignment, err := tx.FindActiveAssignment(ctx, resourceID, userID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoActiveAssignment
		}
		if err != nil {
			return err
		}

		if _, err := tx.ReleaseAssignment(ctx, assignment.ID, now); err != nil {
			return err
		}

		label := e.resourceLabel(ctx, tx, resourceID)
		result = ReturnResult{
			Returned: true,
			Message:  fmt.Sprintf("%s returned. Thanks!", label),
		}

		head, err := tx.DequeueHead(ctx, resourceID)
		if err != nil {
			return err
		}
		if head == nil {
			return nil
		}

		if _, err := tx.CreateAssignment(ctx, resourceID, head.UserID, now, nil); err != nil {
			return err
		}
		promoted := fmt.Sprintf("%s is now available and has been assigned to you.", label)
		if err := tx.AppendNotification(ctx, head.UserID, promoted, now); err != nil {
			return err
		}

		result.AutoAssignedUserID = head.UserID
		result.Message = fmt.Sprintf("%s returned and reassigned to %s.", label, head.UserID)
		push = &pendingPush{userID: head.UserID, message: promoted}
		return nil
	})
	if err != nil {
		return ReturnResult{}, err
	}

	if push != nil {
		e.dispatch(*push)
	}
	return result, nil
}

// ListMyAssignments returns the user's active assignments.
func (e *Engine) ListMyAssignments(ctx context.Context, userID string) ([]model.Assignment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListActiveAssignments(ctx, userID)
}

// ListResources returns the catalog, each resource annotated with its spare
// capacity, optionally filtered by type.
func (e *Engine) ListResources(ctx context.Context, typeFilter model.ResourceType) ([]store.ResourceAvailability, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListResources(ctx, typeFilter)
}

// GetUtilization returns daily snapshots in the inclusive date range, both
// bounds defaulting to today's calendar date when omitted. The ratio is 0 when
// a resource has zero total units.
func (e *Engine) GetUtilization(ctx context.Context, resourceID, dateFrom, dateTo string) ([]UtilizationRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	today := e.now().In(e.loc).Format(time.DateOnly)
	if dateFrom == "" {
		dateFrom = today
	}
	if dateTo == "" {
		dateTo = today
	}

	entries, err := e.store.QueryUtilization(ctx, resourceID, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}

	records := make([]UtilizationRecord, 0, len(entries))
	for _, entry := range entries {
		var ratio float64
		if entry.Total > 0 {
			ratio = float64(entry.Allocated) / float64(entry.Total)
		}
		records = append(records, UtilizationRecord{
			ResourceID:  entry.ResourceID,
			Date:        entry.Date,
			Allocated:   entry.Allocated,
			Total:       entry.Total,
			Utilization: ratio,
		})
	}
	return records, nil
}

// Notifications returns the user's pending in-app messages.
func (e *Engine) Notifications(ctx context.Context, userID string) ([]model.Notification, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ListNotifications(ctx, userID)
}

// ClearNotifications empties the user's in-app queue.
func (e *Engine) ClearNotifications(ctx context.Context, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.ClearNotifications(ctx, userID)
}

// CheckReturnReminders is the recurring sweep. It reminds holders whose due
// date falls within the next 24 hours (already-elapsed due dates are skipped)
// and records one utilization snapshot per resource for today's calendar date.
// The snapshot is first-writer-wins, so re-running the sweep the same day does
// not duplicate entries.
func (e *Engine) CheckReturnReminders(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	var pushes []pendingPush

	err := e.store.Transaction(ctx, func(tx store.Store) error {
		due, err := tx.ListAssignmentsDueBetween(ctx, now, now.Add(24*time.Hour))
		if err != nil {
			return err
		}

		labels := make(map[string]string)
		for _, assignment := range due {
			label, ok := labels[assignment.ResourceID]
			if !ok {
				label = e.resourceLabel(ctx, tx, assignment.ResourceID)
				labels[assignment.ResourceID] = label
			}
			message := fmt.Sprintf("Reminder: %s is due back by %s.",
				label, assignment.DueReturnAt.In(e.loc).Format("Mon Jan 2 15:04"))
			if err := tx.AppendNotification(ctx, assignment.UserID, message, now); err != nil {
				return err
			}
			pushes = append(pushes, pendingPush{userID: assignment.UserID, message: message})
		}

		resources, err := tx.ListResources(ctx, "")
		if err != nil {
			return err
		}
		date := now.In(e.loc).Format(time.DateOnly)
		for _, r := range resources {
			entry := model.UtilizationEntry{
				ResourceID: r.ID,
				Date:       date,
				Allocated:  r.Quantity - r.Available,
				Total:      r.Quantity,
			}
			if err := tx.RecordUtilization(ctx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, push := range pushes {
		e.dispatch(push)
	}
	return nil
}

// ContextSummary builds the compact textual snapshot handed to the freeform
// reply collaborator: active assignments, waitlist positions, and the unread
// notification count.
func (e *Engine) ContextSummary(ctx context.Context, userID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	assignments, err := e.store.ListActiveAssignments(ctx, userID)
	if err != nil {
		return "", err
	}
	waitlisted, err := e.store.WaitlistedResources(ctx, userID)
	if err != nil {
		return "", err
	}
	unread, err := e.store.CountNotifications(ctx, userID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if len(assignments) == 0 {
		b.WriteString("The user holds no resources.")
	} else {
		held := make([]string, len(assignments))
		for i, a := range assignments {
			held[i] = a.ResourceID
			if a.DueReturnAt != nil {
				held[i] += " (due " + a.DueReturnAt.In(e.loc).Format(time.DateOnly) + ")"
			}
		}
		fmt.Fprintf(&b, "The user holds: %s.", strings.Join(held, ", "))
	}
	if len(waitlisted) > 0 {
		fmt.Fprintf(&b, " Waitlisted for: %s.", strings.Join(waitlisted, ", "))
	}
	fmt.Fprintf(&b, " Unread notifications: %d.", unread)
	return b.String(), nil
}

// resourceLabel prefers the resource's display name, falling back to its id
// when the catalog row is missing.
func (e *Engine) resourceLabel(ctx context.Context, s store.Store, resourceID string) string {
	resource, err := s.GetResource(ctx, resourceID)
	if err != nil {
		return resourceID
	}
	return resource.Name
}

func (e *Engine) dispatch(push pendingPush) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(push.userID, push.message)
}
