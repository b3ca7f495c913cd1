package transform

import (
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the only date shape Notion date properties accept from this service.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// HumanLayout mirrors an en-US locale date string.
const HumanLayout = "1/2/2006, 3:04:05 PM"

// zonedLayouts carry their own offset; zonelessLayouts are read in the configured location.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.UnixDate,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
}

var zonelessLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.ANSIC,
	"January 2, 2006 15:04:05",
	"January 2, 2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	HumanLayout,
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

var (
	dayFirstPattern = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	rfc2822Pattern  = regexp.MustCompile(`(\d{1,2})\s+([A-Za-z]{3})[A-Za-z]*\.?\s+(\d{4})\s+(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([+-]\d{4}|[A-Z]{2,4})`)
	jsZoneComment   = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
)

// ParseDate runs the parse chain: common layouts first, then DD/MM/YYYY with an
// optional time, then an RFC 2822 timestamp embedded anywhere in the text.
// Zoneless inputs are read in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	if t, ok := parseNative(s, loc); ok {
		return t, nil
	}
	if t, ok := parseDayFirst(s, loc); ok {
		return t, nil
	}
	if t, ok := parseRFC2822(s); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// FormatISO renders t in UTC with millisecond precision and a Z suffix. The
// configured zone only affects how zoneless input is read, never the output.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

func parseNative(s string, loc *time.Location) (time.Time, bool) {
	// Date-only ISO strings are UTC midnight, not local midnight.
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	stripped := jsZoneComment.ReplaceAllString(s, "")
	if stripped != s {
		if t, err := time.Parse("Mon Jan 02 2006 15:04:05 GMT-0700", stripped); err == nil {
			return t, true
		}
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDayFirst(s string, loc *time.Location) (time.Time, bool) {
	m := dayFirstPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	var hour, minute, second int
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
	}
	if m[6] != "" {
		second, _ = strconv.Atoi(m[6])
	}
	if month < 1 || month > 12 || hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	// time.Date normalises 31/02 into March; reject instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func parseRFC2822(s string) (time.Time, bool) {
	m := rfc2822Pattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	sec := m[6]
	if sec == "" {
		sec = "00"
	}
	mon := strings.ToUpper(m[2][:1]) + strings.ToLower(m[2][1:])
	candidate := fmt.Sprintf("%s %s %s %s:%s:%s %s", m[1], mon, m[3], m[4], m[5], sec, m[7])
	t, err := mail.ParseDate(candidate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
