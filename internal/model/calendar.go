package model

// The local calendar always exists, even with no remote configured.
// It never takes part in sync.
const (
	LocalCalendarHref = "local://tasks"
	LocalCalendarName = "Local"
)

// Calendar is a remote (or the synthetic local) task collection.
// Visibility is a display toggle; whether a calendar is the default is
// derived from config, not stored here.
type Calendar struct {
	Href      string `json:"href"`
	Name      string `json:"name"`
	IsVisible bool   `json:"is_visible"`
	IsLocal   bool   `json:"is_local,omitempty"`
}

// LocalCalendar returns the built-in local calendar entry.
func LocalCalendar() Calendar {
	return Calendar{
		Href:      LocalCalendarHref,
		Name:      LocalCalendarName,
		IsVisible: true,
		IsLocal:   true,
	}
}

// Tag is a derived aggregate: a category name and the number of visible
// tasks carrying it. Tags are never stored.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// UncategorizedTag is the synthetic tag name grouping tasks with an
// empty category set.
const UncategorizedTag = "uncategorized"

// IsUncategorized reports whether the tag is the synthetic aggregate
// for tasks without categories.
func (t Tag) IsUncategorized() bool {
	return t.Name == UncategorizedTag
}
