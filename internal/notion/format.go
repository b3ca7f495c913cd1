package notion

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gmail-notion-relay/internal/transform"
)

// MaxTextLength is the longest content Notion accepts in a single text run.
const MaxTextLength = 2000

var (
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	isoPattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`)
	leadingNumber  = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`)
	urlSchemeMatch = regexp.MustCompile(`(?i)^https?://`)
)

// Format converts a transformed value into the wire shape of kind. A nil
// result means the value cannot represent that kind and the property should
// be omitted.
func Format(value any, kind Kind) PropertyValue {
	if kind == KindCheckbox {
		if value == nil {
			return nil
		}
		if s, ok := value.(string); ok && s == "" {
			return nil
		}
		return PropertyValue{"checkbox": checkbox(value)}
	}
	if isBlank(value) {
		return nil
	}

	switch kind {
	case KindTitle:
		return PropertyValue{"title": []TextRun{Text(truncateRunes(transform.String(value), MaxTextLength))}}
	case KindRichText:
		return PropertyValue{"rich_text": chunkText(transform.String(value))}
	case KindEmail:
		s := strings.TrimSpace(transform.String(value))
		if !emailPattern.MatchString(s) {
			return nil
		}
		return PropertyValue{"email": s}
	case KindURL:
		u, ok := normalizeURL(transform.String(value))
		if !ok {
			return nil
		}
		return PropertyValue{"url": u}
	case KindPhoneNumber:
		s := strings.TrimSpace(transform.String(value))
		if s == "" {
			return nil
		}
		return PropertyValue{"phone_number": s}
	case KindNumber:
		n, ok := number(value)
		if !ok {
			return nil
		}
		return PropertyValue{"number": n}
	case KindDate:
		start, ok := isoDate(value)
		if !ok {
			return nil
		}
		return PropertyValue{"date": DateValue{Start: start}}
	case KindSelect, KindStatus:
		name := strings.TrimSpace(transform.String(value))
		if name == "" {
			return nil
		}
		return PropertyValue{string(kind): NamedOption{Name: name}}
	case KindMultiSelect:
		names := listOf(value)
		if len(names) == 0 {
			return nil
		}
		opts := make([]NamedOption, 0, len(names))
		for _, n := range names {
			opts = append(opts, NamedOption{Name: n})
		}
		return PropertyValue{"multi_select": opts}
	case KindPeople, KindRelation:
		refs := References(listOf(value))
		if len(refs) == 0 {
			return nil
		}
		return PropertyValue{string(kind): refs}
	case KindFiles, KindCreatedTime, KindCreatedBy, KindLastEditedTime, KindLastEditedBy, KindFormula, KindRollup:
		return nil
	default:
		return PropertyValue{"rich_text": chunkText(transform.String(value))}
	}
}

// isBlank is the short-circuit shared by every kind but checkbox: nil, empty
// strings, false, numeric zero and NaN all mean "no value".
func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case bool:
		return !v
	case int:
		return v == 0
	case int64:
		return v == 0
	case float64:
		return v == 0 || math.IsNaN(v)
	}
	return false
}

func checkbox(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	}
	switch strings.ToLower(strings.TrimSpace(transform.String(value))) {
	case "true", "1", "yes":
		return true
	}
	return false
}

func chunkText(s string) []TextRun {
	runes := []rune(s)
	runs := make([]TextRun, 0, len(runes)/MaxTextLength+1)
	for start := 0; start < len(runes); start += MaxTextLength {
		end := start + MaxTextLength
		if end > len(runes) {
			end = len(runes)
		}
		runs = append(runs, Text(string(runes[start:end])))
	}
	return runs
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func normalizeURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return "", false
	}
	if urlSchemeMatch.MatchString(s) {
		return s, true
	}
	if strings.Contains(s, ".") {
		return "https://" + s, true
	}
	return "", false
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	m := leadingNumber.FindString(strings.TrimSpace(transform.String(value)))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

func isoDate(value any) (string, bool) {
	if t, ok := value.(time.Time); ok {
		return transform.FormatISO(t), true
	}
	s := strings.TrimSpace(transform.String(value))
	if isoPattern.MatchString(s) {
		return s, true
	}
	t, err := transform.ParseDate(s, time.UTC)
	if err != nil {
		return "", false
	}
	return transform.FormatISO(t), true
}

func listOf(value any) []string {
	var raw []string
	switch v := value.(type) {
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			raw = append(raw, transform.String(item))
		}
	default:
		raw = strings.Split(transform.String(value), ",")
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
