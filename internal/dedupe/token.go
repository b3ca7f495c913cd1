package dedupe

import "regexp"

// minFallbackRun is the shortest alphanumeric run accepted as a message id
// when no named pattern matches.
const minFallbackRun = 12

// TokenExtractor pulls a message id token out of a permalink or raw id.
type TokenExtractor struct {
	Name    string
	Extract func(s string) (string, bool)
}

// TokenExtractors run in order; the first that finds a token wins. Gmail
// permalinks vary by view and account index but always carry the message id.
var TokenExtractors = []TokenExtractor{
	{Name: "rfc822_msgid", Extract: submatch(`#search/rfc822msgid(?::|%3A)([^\s#?&]{3,})`)},
	{Name: "mailbox_fragment", Extract: submatch(`#(?:inbox|all|sent|starred|imp|drafts|spam|trash|snoozed)/([A-Za-z0-9]{6,})`)},
	{Name: "label_fragment", Extract: submatch(`#(?:label|search|category|apps)/[^/]+/([A-Za-z0-9]{6,})`)},
	{Name: "query_param", Extract: submatch(`[?&](?:permmsgid|msgid|th)=(?:msg-[af]:)?([A-Za-z0-9]{6,})`)},
	{Name: "bare_id", Extract: submatch(`^\s*([A-Za-z0-9]{6,})\s*$`)},
	{Name: "longest_run", Extract: longestRun},
}

// ExtractToken returns the first token any extractor finds in s and the name
// of that extractor.
func ExtractToken(s string) (token, extractor string, ok bool) {
	if s == "" {
		return "", "", false
	}
	for _, ex := range TokenExtractors {
		if t, ok := ex.Extract(s); ok {
			return t, ex.Name, true
		}
	}
	return "", "", false
}

func submatch(pattern string) func(string) (string, bool) {
	re := regexp.MustCompile(pattern)
	return func(s string) (string, bool) {
		m := re.FindStringSubmatch(s)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
}

var alnumRun = regexp.MustCompile(`[A-Za-z0-9]+`)

func longestRun(s string) (string, bool) {
	best := ""
	for _, run := range alnumRun.FindAllString(s, -1) {
		if len(run) > len(best) {
			best = run
		}
	}
	if len(best) < minFallbackRun {
		return "", false
	}
	return best, true
}
