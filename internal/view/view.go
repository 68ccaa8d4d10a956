// Package view derives presentation-ready projections from a cache
// snapshot. Everything here is pure: no I/O, no mutation, identical
// inputs give byte-identical output.
package view

import (
	"sort"
	"strings"

	"github.com/existflow/caldo/internal/model"
	"github.com/existflow/caldo/internal/store"
)

// Query holds the parameters of a task-list projection.
type Query struct {
	FilterTag     string // "" = all tags; model.UncategorizedTag = empty category set
	Search        string // case-insensitive substring over summary+description
	HideCompleted bool
}

// CalendarEntry is a calendar annotated for display.
type CalendarEntry struct {
	model.Calendar
	IsDefault bool
}

// VisibleTasks filters and sorts the snapshot for display: visible
// calendars only, optional done/tag/search filters, then a total order
// of (not-done first, priority with 0 last, uid).
func VisibleTasks(snap store.Snapshot, hiddenCalendars []string, q Query) []model.Task {
	hidden := toSet(hiddenCalendars)
	search := strings.ToLower(q.Search)

	var out []model.Task
	for _, t := range snap.Tasks {
		if hidden[t.CalendarHref] {
			continue
		}
		if q.HideCompleted && t.Status.IsDone() {
			continue
		}
		if !matchesTag(t, q.FilterTag) {
			continue
		}
		if search != "" && !matchesSearch(t, search) {
			continue
		}
		t.Depth = depthOf(snap, t.UID)
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Status.IsDone() != b.Status.IsDone() {
			return !a.Status.IsDone()
		}
		if pa, pb := priorityRank(a.Priority), priorityRank(b.Priority); pa != pb {
			return pa < pb
		}
		return a.UID < b.UID
	})
	return out
}

// priorityRank maps priority 0 ("unset") below every explicit value.
func priorityRank(p int) int {
	if p == 0 {
		return 6
	}
	return p
}

func matchesTag(t model.Task, filter string) bool {
	switch filter {
	case "":
		return true
	case model.UncategorizedTag:
		return len(t.Categories) == 0
	default:
		return t.HasCategory(filter)
	}
}

func matchesSearch(t model.Task, lowered string) bool {
	return strings.Contains(strings.ToLower(t.Summary), lowered) ||
		strings.Contains(strings.ToLower(t.Description), lowered)
}

// depthOf counts parent links. Broken or cyclic chains stop counting
// rather than recursing forever.
func depthOf(snap store.Snapshot, uid string) int {
	depth := 0
	seen := map[string]bool{uid: true}
	cur := snap.Tasks[uid]
	for cur.ParentUID != "" && !seen[cur.ParentUID] {
		parent, ok := snap.Tasks[cur.ParentUID]
		if !ok {
			break
		}
		seen[cur.ParentUID] = true
		depth++
		cur = parent
	}
	return depth
}

// IsBlocked reports whether the task has a dependency that is not done.
// Dependencies on uids missing from the cache do not block.
func IsBlocked(snap store.Snapshot, t model.Task) bool {
	for _, dep := range t.Dependencies {
		if other, ok := snap.Tasks[dep]; ok && !other.Status.IsDone() {
			return true
		}
	}
	return false
}

// TagSummary groups visible tasks by category, alphabetically, with the
// synthetic uncategorized entry first when any task has no tags.
func TagSummary(snap store.Snapshot, hiddenCalendars []string, hideCompleted bool) []model.Tag {
	hidden := toSet(hiddenCalendars)

	counts := map[string]int{}
	uncategorized := 0
	for _, t := range snap.Tasks {
		if hidden[t.CalendarHref] {
			continue
		}
		if hideCompleted && t.Status.IsDone() {
			continue
		}
		if len(t.Categories) == 0 {
			uncategorized++
			continue
		}
		for _, c := range t.Categories {
			counts[c]++
		}
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var tags []model.Tag
	if uncategorized > 0 {
		tags = append(tags, model.Tag{Name: model.UncategorizedTag, Count: uncategorized})
	}
	for _, name := range names {
		tags = append(tags, model.Tag{Name: name, Count: counts[name]})
	}
	return tags
}

// CalendarList annotates calendars with derived visibility and default
// flags, preserving stored order.
func CalendarList(snap store.Snapshot, hiddenCalendars []string, defaultCalendar string) []CalendarEntry {
	hidden := toSet(hiddenCalendars)

	out := make([]CalendarEntry, 0, len(snap.Calendars))
	for _, c := range snap.Calendars {
		c.IsVisible = !hidden[c.Href]
		out = append(out, CalendarEntry{
			Calendar:  c,
			IsDefault: defaultCalendar != "" && (c.Href == defaultCalendar || c.Name == defaultCalendar),
		})
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
