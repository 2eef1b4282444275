package normalize

import (
	"log"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// labelPrefixes are decorations some sources prepend to their timestamps.
var labelPrefixes = []string{
	"Updated On :",
	"Updated On:",
	"Updated:",
	"Published:",
	"Last Updated:",
}

// explicitLayouts are tried before any lenient parsing to avoid locale
// ambiguity (02/01 vs 01/02).
var explicitLayouts = []string{
	"02 Jan 2006 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04",
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"2006-01-02 15:04:05",
	"Jan 02, 2006 15:04 MST",
}

// Date parses one of the many date renderings the sources produce into an
// instant in loc. Explicit unambiguous layouts are tried first, then a
// lenient parse. A string nothing can parse yields the current instant:
// a bad date must never abort ingestion of an otherwise valid article.
func Date(raw string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Now().In(loc)
	}

	for _, p := range labelPrefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}

	for _, layout := range explicitLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc)
		}
	}

	if t, err := dateparse.ParseIn(s, loc); err == nil {
		return t.In(loc)
	}

	log.Printf("Warning: unparseable date %q, using ingestion time", raw)
	return time.Now().In(loc)
}

// SameDay reports whether t falls on the given calendar day in loc.
func SameDay(t time.Time, day time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.Local
	}
	ty, tm, td := t.In(loc).Date()
	dy, dm, dd := day.In(loc).Date()
	return ty == dy && tm == dm && td == dd
}
