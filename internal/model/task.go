package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task, using the remote service's
// vocabulary (VTODO STATUS values).
type Status string

const (
	StatusNeedsAction Status = "NEEDS-ACTION"
	StatusInProcess   Status = "IN-PROCESS"
	StatusCompleted   Status = "COMPLETED"
	StatusCancelled   Status = "CANCELLED"
)

// IsDone reports whether the task no longer needs attention. Cancelled
// counts as done: both filtering and sorting treat it the same way.
func (s Status) IsDone() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus maps a raw status string to a Status, defaulting to
// NEEDS-ACTION for anything unrecognized.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusInProcess, StatusCompleted, StatusCancelled:
		return Status(raw)
	default:
		return StatusNeedsAction
	}
}

// Task represents a single todo item. Tasks reference their calendar by
// href only; there are no embedded object graphs.
type Task struct {
	UID          string     `json:"uid"`
	Href         string     `json:"href,omitempty"`
	ETag         string     `json:"etag,omitempty"`
	CalendarHref string     `json:"calendar_href"`
	Summary      string     `json:"summary"`
	Description  string     `json:"description,omitempty"`
	Status       Status     `json:"status"`
	Priority     int        `json:"priority"` // 0 = unset, 1-5 set
	Due          *time.Time `json:"due,omitempty"`
	DtStart      *time.Time `json:"dtstart,omitempty"`
	DurationMins int        `json:"duration_mins,omitempty"` // 0 = no estimate
	Categories   []string   `json:"categories,omitempty"`
	RRule        string     `json:"rrule,omitempty"`
	ParentUID    string     `json:"parent_uid,omitempty"`
	Dependencies []string   `json:"dependencies,omitempty"`
	Depth        int        `json:"depth,omitempty"`
	ModifiedAt   time.Time  `json:"modified_at"`
}

// NewTask creates an empty task on the given calendar with a fresh uid.
func NewTask(calendarHref string) Task {
	return Task{
		UID:          uuid.New().String(),
		CalendarHref: calendarHref,
		Status:       StatusNeedsAction,
		ModifiedAt:   time.Now(),
	}
}

// IsRecurring reports whether the task carries a recurrence rule.
func (t *Task) IsRecurring() bool {
	return t.RRule != ""
}

// HasCategory reports whether the task carries the given tag.
func (t *Task) HasCategory(name string) bool {
	for _, c := range t.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// AddCategories appends tags that are not already present, preserving
// the order in which they first appear.
func (t *Task) AddCategories(names ...string) {
	for _, n := range names {
		if n != "" && !t.HasCategory(n) {
			t.Categories = append(t.Categories, n)
		}
	}
}

// Touch records a local modification time, used by sync reconciliation
// to decide whether a fetched snapshot may overwrite this task.
func (t *Task) Touch() {
	t.ModifiedAt = time.Now()
}

// Clone returns a deep copy; slices are not shared with the receiver.
func (t Task) Clone() Task {
	c := t
	if t.Due != nil {
		due := *t.Due
		c.Due = &due
	}
	if t.DtStart != nil {
		start := *t.DtStart
		c.DtStart = &start
	}
	c.Categories = append([]string(nil), t.Categories...)
	c.Dependencies = append([]string(nil), t.Dependencies...)
	return c
}
