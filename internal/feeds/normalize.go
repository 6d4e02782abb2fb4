package feeds

import (
	"strings"
	"time"
)

// Layouts tried in order by NormalizeTime. Values without a zone are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.999999999-0700",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 02 Jan 2006 15:04 -0700",
	"Mon, 02 Jan 2006 15:04 MST",
	"02 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Zone abbreviations seen in feed dates. time.Parse resolves an abbreviation
// it does not know to a zero offset, so these are applied explicitly.
var zoneOffsets = map[string]int{
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
	"AKST": -9 * 3600, "AKDT": -8 * 3600,
	"HST": -10 * 3600,
	"WET": 0, "BST": 3600, "CET": 3600, "CEST": 2 * 3600,
	"EET": 2 * 3600, "EEST": 3 * 3600, "JST": 9 * 3600,
}

// NormalizeTime parses a timestamp in any of the accepted formats (ISO-8601
// with optional offset or fraction, RFC-2822 feed dates, a few fallbacks) and
// returns it in UTC truncated to whole seconds. ok is false on unparseable
// input; callers substitute their own default, usually the fetch time.
func NormalizeTime(raw string) (t time.Time, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		parsed, ok = applyZone(parsed)
		if !ok {
			return time.Time{}, false
		}
		return parsed.UTC().Truncate(time.Second), true
	}
	return time.Time{}, false
}

// applyZone fixes the offset of a time parsed with a named zone. An
// abbreviation that is neither known nor a UTC alias is rejected.
func applyZone(t time.Time) (time.Time, bool) {
	name, off := t.Zone()
	if off, known := zoneOffsets[name]; known {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(),
			t.Nanosecond(), time.FixedZone(name, off)), true
	}
	if off != 0 {
		return t, true
	}
	switch name {
	case "", "UTC", "GMT", "UT", "Z":
		return t, true
	}
	return time.Time{}, false
}

// NormalizeOr is NormalizeTime with a fallback for unparseable input.
func NormalizeOr(raw string, fallback time.Time) time.Time {
	if t, ok := NormalizeTime(raw); ok {
		return t
	}
	return fallback.UTC().Truncate(time.Second)
}

// FormatTime renders t in CanonicalLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(CanonicalLayout)
}
