// Package smart implements the compact task notation: free text with
// inline !priority, @due, #tag and ~duration directives. Decoding is
// forgiving; any directive that does not parse stays in the summary.
package smart

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Fields is the structured result of decoding a smart string.
type Fields struct {
	Summary      string
	Priority     int // 0 = unset
	Due          *time.Time
	Categories   []string
	DurationMins int // 0 = no estimate
}

var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// Decode parses input into structured fields. aliases maps a tag name
// typed after '#' to the underlying tags it expands to. now anchors
// relative dates, so tests can pin it.
func Decode(input string, aliases map[string][]string, now time.Time) Fields {
	var f Fields
	var words []string

	for _, tok := range strings.Fields(input) {
		switch {
		case strings.HasPrefix(tok, "!") && len(tok) > 1:
			if p, err := strconv.Atoi(tok[1:]); err == nil && p >= 1 && p <= 5 {
				f.Priority = p // last one wins
				continue
			}
		case strings.HasPrefix(tok, "@") && len(tok) > 1:
			if due, ok := parseDate(tok[1:], now); ok {
				f.Due = &due
				continue
			}
		case strings.HasPrefix(tok, "#") && len(tok) > 1:
			name := strings.TrimSpace(tok[1:])
			if name != "" {
				if expansion, ok := aliases[name]; ok {
					f.addCategories(expansion...)
				} else {
					f.addCategories(name)
				}
				continue
			}
		case strings.HasPrefix(tok, "~") && len(tok) > 1:
			if mins, ok := parseDuration(tok[1:]); ok {
				f.DurationMins = mins
				continue
			}
		}
		words = append(words, tok)
	}

	f.Summary = strings.Join(words, " ")
	return f
}

func (f *Fields) addCategories(names ...string) {
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		dup := false
		for _, c := range f.Categories {
			if c == n {
				dup = true
				break
			}
		}
		if !dup {
			f.Categories = append(f.Categories, n)
		}
	}
}

// parseDate accepts YYYY-MM-DD or anything the natural-language parser
// resolves (today, tomorrow, weekday names). Date-only values land on
// end of day UTC so "due tomorrow" means the whole of tomorrow.
func parseDate(tok string, now time.Time) (time.Time, bool) {
	if d, err := time.Parse("2006-01-02", tok); err == nil {
		return endOfDay(d), true
	}

	res, err := dateParser.Parse(tok, now)
	if err != nil || res == nil {
		return time.Time{}, false
	}
	return endOfDay(res.Time), true
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
}

// Duration units accepted after '~'. Months and years are the rough
// calendar values the original notation used.
var durationUnits = []struct {
	suffix string
	mins   int
}{
	{"mo", 43200},
	{"m", 1},
	{"h", 60},
	{"d", 1440},
	{"w", 10080},
	{"y", 525600},
}

func parseDuration(tok string) (int, bool) {
	tok = strings.ToLower(tok)
	for _, u := range durationUnits {
		if !strings.HasSuffix(tok, u.suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(tok, u.suffix))
		if err != nil || n <= 0 {
			return 0, false
		}
		return n * u.mins, true
	}
	return 0, false
}

// FormatDuration renders minutes in the largest unit that divides
// evenly, matching what parseDuration reads back.
func FormatDuration(mins int) string {
	switch {
	case mins >= 525600 && mins%525600 == 0:
		return fmt.Sprintf("%dy", mins/525600)
	case mins >= 43200 && mins%43200 == 0:
		return fmt.Sprintf("%dmo", mins/43200)
	case mins >= 10080 && mins%10080 == 0:
		return fmt.Sprintf("%dw", mins/10080)
	case mins >= 1440 && mins%1440 == 0:
		return fmt.Sprintf("%dd", mins/1440)
	case mins >= 60 && mins%60 == 0:
		return fmt.Sprintf("%dh", mins/60)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}

// Encode renders fields back to canonical smart form:
// !p @date #tags ~dur summary. Directive order is canonical, not
// whatever the user typed. Due dates render date-only; a Due carrying a
// time of day loses it and decodes back to end of that day UTC.
func Encode(f Fields) string {
	var parts []string
	if f.Priority > 0 {
		parts = append(parts, fmt.Sprintf("!%d", f.Priority))
	}
	if f.Due != nil {
		parts = append(parts, "@"+f.Due.In(time.UTC).Format("2006-01-02"))
	}
	for _, c := range f.Categories {
		parts = append(parts, "#"+c)
	}
	if f.DurationMins > 0 {
		parts = append(parts, "~"+FormatDuration(f.DurationMins))
	}
	if f.Summary != "" {
		parts = append(parts, f.Summary)
	}
	return strings.Join(parts, " ")
}
