// Package transform normalises raw email values before they are formatted for Notion.
package transform

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ID names a transformation a mapping can apply to its source value.
type ID string

const (
	None           ID = "none"
	RemovePrefixes ID = "remove_prefixes"
	Truncate100    ID = "truncate_100"
	Truncate500    ID = "truncate_500"
	HTMLToText     ID = "html_to_text"
	ExtractLinks   ID = "extract_links"
	ExtractEmail   ID = "extract_email"
	ExtractDomain  ID = "extract_domain"
	ParseDateID    ID = "parse_date"
	ISODate        ID = "iso_date"
	HumanDate      ID = "human_date"
	CountItems     ID = "count_items"
	ExtractNumber  ID = "extract_number"
	ExistsToTrue   ID = "exists_to_true"
	YesNo          ID = "yes_no"
	SplitComma     ID = "split_comma"
	FirstItem      ID = "first_item"
	JoinItems      ID = "join_items"
	Lowercase      ID = "lowercase"
	Uppercase      ID = "uppercase"
)

// Option describes a transformation for configuration forms.
type Option struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

// Options lists the selectable transformations in display order.
var Options = []Option{
	{None, "None"},
	{RemovePrefixes, "Remove Re:/Fwd: prefix"},
	{Truncate100, "Truncate to 100 characters"},
	{Truncate500, "Truncate to 500 characters"},
	{HTMLToText, "HTML to plain text"},
	{ExtractLinks, "Extract links"},
	{ExtractEmail, "Extract email address"},
	{ExtractDomain, "Extract email domain"},
	{ParseDateID, "Parse date"},
	{ISODate, "ISO date"},
	{HumanDate, "Readable date"},
	{CountItems, "Count items"},
	{ExtractNumber, "Extract number"},
	{ExistsToTrue, "Exists (true/false)"},
	{YesNo, "Exists (Yes/No)"},
	{SplitComma, "Split on commas"},
	{FirstItem, "First item"},
	{JoinItems, "Join items"},
	{Lowercase, "Lowercase"},
	{Uppercase, "Uppercase"},
}

var (
	prefixPattern = regexp.MustCompile(`(?i)^\s*(re|fwd?)\s*:\s*`)
	brPattern     = regexp.MustCompile(`(?i)<br\s*/?>`)
	tagPattern    = regexp.MustCompile(`<[^>]*>`)
	spacePattern  = regexp.MustCompile(`[^\S\n]+`)
	linePattern   = regexp.MustCompile(` *\n *`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	linkPattern   = regexp.MustCompile(`https?://[^\s<>"']+`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	numberPattern = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d+)?|\.\d+)`)
	itemSplit     = regexp.MustCompile(`[,;\n]`)
)

// Engine applies transformations. Its location is used to read zoneless dates
// and to render human-readable ones.
type Engine struct {
	loc *time.Location
}

// NewEngine returns an engine bound to loc; nil means UTC.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{loc: loc}
}

var defaultEngine = NewEngine(time.UTC)

// Apply runs id over value using a UTC engine.
func Apply(value any, id ID) any {
	return defaultEngine.Apply(value, id)
}

// Location returns the engine's time zone.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Apply converts value according to id. It never fails: nil, empty strings and
// unknown ids come back unchanged, and an unparseable date is returned as-is.
func (e *Engine) Apply(value any, id ID) any {
	if isEmpty(value) {
		return value
	}

	switch id {
	case RemovePrefixes:
		return strings.TrimSpace(prefixPattern.ReplaceAllString(String(value), ""))
	case Truncate100:
		return truncate(String(value), 100)
	case Truncate500:
		return truncate(String(value), 500)
	case HTMLToText:
		return htmlToText(String(value))
	case ExtractLinks:
		return strings.Join(linkPattern.FindAllString(String(value), -1), ", ")
	case ExtractEmail:
		s := String(value)
		if m := emailPattern.FindString(s); m != "" {
			return m
		}
		return s
	case ExtractDomain:
		s := String(value)
		if m := emailPattern.FindString(s); m != "" {
			return strings.ToLower(m[strings.LastIndexByte(m, '@')+1:])
		}
		return s
	case ParseDateID, ISODate:
		return e.isoDate(value)
	case HumanDate:
		return e.humanDate(value)
	case CountItems:
		return countItems(value)
	case ExtractNumber:
		if m := numberPattern.FindString(String(value)); m != "" {
			return m
		}
		return "0"
	case ExistsToTrue:
		return exists(value)
	case YesNo:
		if exists(value) {
			return "Yes"
		}
		return "No"
	case SplitComma:
		return splitComma(value)
	case FirstItem:
		return firstItem(value)
	case JoinItems:
		if items, ok := asList(value); ok {
			return strings.Join(items, ", ")
		}
		return value
	case Lowercase:
		return strings.ToLower(String(value))
	case Uppercase:
		return strings.ToUpper(String(value))
	default:
		return value
	}
}

// ParseDate runs the parse chain in the engine's location and reports failure
// instead of passing the value through.
func (e *Engine) ParseDate(value any) (time.Time, error) {
	if t, ok := value.(time.Time); ok {
		return t, nil
	}
	return ParseDate(String(value), e.loc)
}

func (e *Engine) isoDate(value any) any {
	t, err := e.ParseDate(value)
	if err != nil {
		logrus.Warnf("Date transformation failed, keeping original value: %v", err)
		return value
	}
	return FormatISO(t)
}

func (e *Engine) humanDate(value any) any {
	t, err := e.ParseDate(value)
	if err != nil {
		logrus.Warnf("Readable date transformation failed, keeping original value: %v", err)
		return value
	}
	return t.In(e.loc).Format(HumanLayout)
}

// String renders a transformed value as text.
func String(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, String(item))
		}
		return strings.Join(parts, ", ")
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case time.Time:
		return FormatISO(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// isEmpty reports the values that short-circuit every transformation. false
// and 0 are real values and do not short-circuit.
func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case float64:
		return math.IsNaN(v)
	}
	return false
}

func exists(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	case time.Time:
		return !v.IsZero()
	}
	return true
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func htmlToText(s string) string {
	s = brPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spacePattern.ReplaceAllString(s, " ")
	s = linePattern.ReplaceAllString(s, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func countItems(value any) string {
	if items, ok := value.([]string); ok {
		return strconv.Itoa(len(items))
	}
	if items, ok := value.([]any); ok {
		return strconv.Itoa(len(items))
	}
	s, ok := value.(string)
	if !ok {
		return "1"
	}
	count := 0
	for _, part := range itemSplit.Split(s, -1) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return strconv.Itoa(count)
}

func splitComma(value any) any {
	if items, ok := asList(value); ok {
		return strings.Join(items, ", ")
	}
	s, ok := value.(string)
	if !ok || !strings.Contains(s, ",") {
		return value
	}
	return splitTrimmed(s)
}

func firstItem(value any) any {
	if items, ok := asList(value); ok {
		if len(items) == 0 {
			return ""
		}
		return items[0]
	}
	if s, ok := value.(string); ok {
		if parts := splitTrimmed(s); len(parts) > 0 {
			return parts[0]
		}
		return ""
	}
	return value
}

func asList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, String(item))
		}
		return items, true
	}
	return nil, false
}

func splitTrimmed(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
