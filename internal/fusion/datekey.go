package fusion

import (
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05.999999",
}

// DateKey normalizes a date or timestamp string to its calendar date (YYYY-MM-DD).
// Timestamps carrying a zone are converted to UTC before truncation.
// Returns false when the value cannot be parsed.
func DateKey(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}

	if t, err := time.Parse(dateLayout, value); err == nil {
		return t.Format(dateLayout), true
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC().Format(dateLayout), true
		}
	}

	return "", false
}

// DayOf returns the UTC calendar date key of t
func DayOf(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
