// Package intent recognizes structured commands in inbound chat text. Matchers
// are tried in a fixed order; text that matches none of them falls through to
// the freeform reply collaborator.
package intent

import (
	"regexp"
	"strings"
	"time"

	"resource-pool-backend/internal/model"
)

// Kind identifies a recognized structured intent.
type Kind string

const (
	KindRequest            Kind = "request"
	KindReturn             Kind = "return"
	KindListMine           Kind = "list_mine"
	KindListResources      Kind = "list_resources"
	KindUtilization        Kind = "utilization"
	KindNotifications      Kind = "notifications"
	KindClearNotifications Kind = "clear_notifications"
)

// Intent is a parsed structured command.
type Intent struct {
	Kind        Kind
	ResourceID  string
	TypeFilter  model.ResourceType
	DateFrom    string
	DateTo      string
	DueReturnAt *time.Time
}

type matcher struct {
	re    *regexp.Regexp
	build func(groups []string) Intent
}

const dateLayout = time.DateOnly

// matchers is the ordered list of structured parse attempts. Order matters:
// earlier patterns win, and the fallback to freeform replies happens only when
// every matcher fails.
var matchers = []matcher{
	{
		re: regexp.MustCompile(`(?i)^(?:request|borrow|book|take)\s+(\S+?)(?:\s+until\s+(\d{4}-\d{2}-\d{2}))?\s*$`),
		build: func(g []string) Intent {
			in := Intent{Kind: KindRequest, ResourceID: g[1]}
			if g[2] != "" {
				if due, err := time.Parse(dateLayout, g[2]); err == nil {
					// Due at end of the named day.
					due = due.Add(24*time.Hour - time.Second)
					in.DueReturnAt = &due
				}
			}
			return in
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:return|release|give\s+back)\s+(\S+)\s*$`),
		build: func(g []string) Intent {
			return Intent{Kind: KindReturn, ResourceID: g[1]}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:my\s+(?:stuff|assignments|resources)|what\s+do\s+i\s+have)\??\s*$`),
		build: func(g []string) Intent {
			return Intent{Kind: KindListMine}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:list|resources|what(?:'s|\s+is)\s+available)(?:\s+(equipment|license|parking))?\??\s*$`),
		build: func(g []string) Intent {
			return Intent{Kind: KindListResources, TypeFilter: model.ResourceType(strings.ToLower(g[1]))}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^(?:utilization|usage)(?:\s+(?:of\s+)?([^\s]+?))?(?:\s+from\s+(\d{4}-\d{2}-\d{2}))?(?:\s+to\s+(\d{4}-\d{2}-\d{2}))?\s*$`),
		build: func(g []string) Intent {
			return Intent{Kind: KindUtilization, ResourceID: g[1], DateFrom: g[2], DateTo: g[3]}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^clear(?:\s+notifications?)?\s*$`),
		build: func(g []string) Intent {
			return Intent{Kind: KindClearNotifications}
		},
	},
	{
		re: regexp.MustCompile(`(?i)^notifications?\s*$`),
		build: func(g []string) Intent {
			return Intent{Kind: KindNotifications}
		},
	},
}

// Match runs the ordered matchers against the text. The second return value is
// false when no structured intent applies.
func Match(text string) (Intent, bool) {
	s := strings.TrimSpace(text)
	for _, m := range matchers {
		if g := m.re.FindStringSubmatch(s); g != nil {
			return m.build(g), true
		}
	}
	return Intent{}, false
}
