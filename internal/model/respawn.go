package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Respawn builds the next occurrence of a recurring task. It returns nil
// when the task has no recurrence rule, no date to seed from, or a rule
// frequency this client does not schedule locally. The next occurrence
// keeps summary, description, priority and tags but gets a fresh uid,
// resets status and drops dependency links.
func (t *Task) Respawn() *Task {
	if t.RRule == "" {
		return nil
	}

	seed := t.DtStart
	if seed == nil {
		seed = t.Due
	}
	if seed == nil {
		return nil
	}

	next, ok := nextOccurrence(*seed, t.RRule)
	if !ok {
		return nil
	}

	n := t.Clone()
	n.UID = uuid.New().String()
	n.Href = ""
	n.ETag = ""
	n.Status = StatusNeedsAction
	n.Dependencies = nil
	n.ModifiedAt = time.Now()

	if t.DtStart != nil {
		n.DtStart = &next
	}
	if t.Due != nil {
		// Shift due by the same offset from the seed date. When dtstart
		// is absent the seed is the due date and the offset is zero.
		due := next.Add(t.Due.Sub(*seed))
		n.Due = &due
	}
	return &n
}

// nextOccurrence advances seed by one recurrence step. Only the
// FREQ/INTERVAL subset of RRULE is scheduled client-side; anything
// fancier is left to the remote service.
func nextOccurrence(seed time.Time, rrule string) (time.Time, bool) {
	freq := ""
	interval := 1
	for _, part := range strings.Split(rrule, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(strings.TrimSpace(key)) {
		case "FREQ":
			freq = strings.ToUpper(strings.TrimSpace(val))
		case "INTERVAL":
			if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil && n > 0 {
				interval = n
			}
		}
	}

	switch freq {
	case "DAILY":
		return seed.AddDate(0, 0, interval), true
	case "WEEKLY":
		return seed.AddDate(0, 0, 7*interval), true
	case "MONTHLY":
		return seed.AddDate(0, interval, 0), true
	case "YEARLY":
		return seed.AddDate(interval, 0, 0), true
	default:
		return time.Time{}, false
	}
}
