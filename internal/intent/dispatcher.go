package intent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"resource-pool-backend/internal/engine"
	"resource-pool-backend/internal/model"
	"resource-pool-backend/internal/resolver"
	"resource-pool-backend/internal/store"
)

// fallbackReply is returned when the freeform collaborator is unavailable or
// not configured. Degrading to it is never an error to the caller.
const fallbackReply = `Sorry, I couldn't work out what you need. Try "request <resource>", "return <resource>", "list", "my stuff", or "utilization".`

// Dispatcher runs inbound chat text through the ordered matchers and executes
// the recognized intent against the engine. Unrecognized text is delegated to
// the freeform resolver with the user's pool state as context.
type Dispatcher struct {
	engine   *engine.Engine
	store    store.Store
	resolver resolver.Resolver
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. A nil resolver means unrecognized text
// always gets the static fallback reply.
func NewDispatcher(e *engine.Engine, s store.Store, r resolver.Resolver) *Dispatcher {
	return &Dispatcher{
		engine:   e,
		store:    s,
		resolver: r,
		now:      time.Now,
	}
}

// Handle produces the reply for one inbound message. It never returns an
// error to the caller: business failures become plain-language reasons and
// collaborator failures degrade to the static fallback.
func (d *Dispatcher) Handle(ctx context.Context, userID, text string) string {
	var reply string
	if in, ok := Match(text); ok {
		reply = d.execute(ctx, userID, in)
	} else {
		reply = d.freeform(ctx, userID, text)
	}

	now := d.now().UTC()
	if err := d.store.AppendConversation(ctx, userID, "user", text, now); err != nil {
		log.Printf("Failed to record conversation turn for %s: %v", userID, err)
	}
	if err := d.store.AppendConversation(ctx, userID, "assistant", reply, now); err != nil {
		log.Printf("Failed to record conversation turn for %s: %v", userID, err)
	}
	return reply
}

func (d *Dispatcher) execute(ctx context.Context, userID string, in Intent) string {
	switch in.Kind {
	case KindRequest:
		result, err := d.engine.RequestResource(ctx, in.ResourceID, userID, in.DueReturnAt)
		if errors.Is(err, engine.ErrUnknownResource) {
			return fmt.Sprintf("I don't know a resource called %q. Say \"list\" to see what's in the pool.", in.ResourceID)
		}
		if err != nil {
			log.Printf("request %s for %s failed: %v", in.ResourceID, userID, err)
			return "Something went wrong handling that request. Please try again."
		}
		return result.Message

	case KindReturn:
		result, err := d.engine.ReturnResource(ctx, in.ResourceID, userID)
		if errors.Is(err, engine.ErrNoActiveAssignment) {
			return fmt.Sprintf("You don't currently hold %s, so there is nothing to return.", in.ResourceID)
		}
		if err != nil {
			log.Printf("return %s for %s failed: %v", in.ResourceID, userID, err)
			return "Something went wrong handling that return. Please try again."
		}
		return result.Message

	case KindListMine:
		assignments, err := d.engine.ListMyAssignments(ctx, userID)
		if err != nil {
			log.Printf("list assignments for %s failed: %v", userID, err)
			return "Something went wrong looking up your assignments."
		}
		return formatAssignments(assignments)

	case KindListResources:
		resources, err := d.engine.ListResources(ctx, in.TypeFilter)
		if err != nil {
			log.Printf("list resources failed: %v", err)
			return "Something went wrong listing resources."
		}
		return formatResources(resources)

	case KindUtilization:
		records, err := d.engine.GetUtilization(ctx, in.ResourceID, in.DateFrom, in.DateTo)
		if err != nil {
			log.Printf("utilization query failed: %v", err)
			return "Something went wrong querying utilization."
		}
		return formatUtilization(records)

	case KindNotifications:
		notifications, err := d.engine.Notifications(ctx, userID)
		if err != nil {
			log.Printf("notifications for %s failed: %v", userID, err)
			return "Something went wrong fetching your notifications."
		}
		return formatNotifications(notifications)

	case KindClearNotifications:
		if err := d.engine.ClearNotifications(ctx, userID); err != nil {
			log.Printf("clear notifications for %s failed: %v", userID, err)
			return "Something went wrong clearing your notifications."
		}
		return "Notifications cleared."
	}
	return fallbackReply
}

// freeform delegates to the resolver collaborator, degrading to the static
// fallback when it is absent or fails.
func (d *Dispatcher) freeform(ctx context.Context, userID, text string) string {
	if d.resolver == nil {
		return fallbackReply
	}

	summary, err := d.engine.ContextSummary(ctx, userID)
	if err != nil {
		log.Printf("Failed to build context summary for %s: %v", userID, err)
		return fallbackReply
	}
	history, err := d.store.RecentConversation(ctx, userID)
	if err != nil {
		log.Printf("Failed to load conversation history for %s: %v", userID, err)
		history = nil
	}

	reply, err := d.resolver.Reply(ctx, userID, text, summary, history)
	if err != nil {
		log.Printf("Freeform resolver unavailable for %s: %v", userID, err)
		return fallbackReply
	}
	return reply
}

func formatAssignments(assignments []model.Assignment) string {
	if len(assignments) == 0 {
		return "You don't hold any resources right now."
	}
	lines := make([]string, 0, len(assignments)+1)
	lines = append(lines, "You currently hold:")
	for _, a := range assignments {
		line := fmt.Sprintf("- %s (since %s)", a.ResourceID, a.AssignedAt.Format(time.DateOnly))
		if a.DueReturnAt != nil {
			line += fmt.Sprintf(", due back %s", a.DueReturnAt.Format(time.DateOnly))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatResources(resources []store.ResourceAvailability) string {
	if len(resources) == 0 {
		return "The pool is empty."
	}
	lines := make([]string, 0, len(resources))
	for _, r := range resources {
		lines = append(lines, fmt.Sprintf("- %s (%s): %d of %d available", r.Name, r.ID, r.Available, r.Quantity))
	}
	return strings.Join(lines, "\n")
}

func formatUtilization(records []engine.UtilizationRecord) string {
	if len(records) == 0 {
		return "No utilization snapshots for that range yet."
	}
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, fmt.Sprintf("- %s %s: %d/%d (%.0f%%)",
			rec.Date, rec.ResourceID, rec.Allocated, rec.Total, rec.Utilization*100))
	}
	return strings.Join(lines, "\n")
}

func formatNotifications(notifications []model.Notification) string {
	if len(notifications) == 0 {
		return "No new notifications."
	}
	lines := make([]string, 0, len(notifications))
	for _, n := range notifications {
		lines = append(lines, "- "+n.Message)
	}
	return strings.Join(lines, "\n")
}
