package statement

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order. Slash and dash dates without a leading
// year are day-first, as on M-Pesa statements.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2-1-2006 15:04:05",
	"2/1/2006 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	"02/01/2006",
}

// ParseTimestamp parses a completion time leniently. Values without a zone are
// read as UTC. It returns nil and ok=false when no layout matches.
func ParseTimestamp(raw string) (*time.Time, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return nil, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t, true
		}
	}
	return nil, false
}
