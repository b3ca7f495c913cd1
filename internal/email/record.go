// Package email normalises messages from any source into immutable records.
package email

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"gmail-notion-relay/internal/transform"
)

const (
	// PermalinkBase is the Gmail deep link prefix a Gmail message id is
	// appended to.
	PermalinkBase = "https://mail.google.com/mail/u/0/#inbox/"
	// SearchPermalinkBase finds a message by its RFC 822 Message-ID when no
	// Gmail id is known.
	SearchPermalinkBase = "https://mail.google.com/mail/u/0/#search/rfc822msgid:"
)

// DefaultSubject stands in for a missing subject.
const DefaultSubject = "(No Subject)"

// AttachmentRef describes an attachment without its content. Handle is the
// source-specific id needed to download it.
type AttachmentRef struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Handle      string `json:"handle,omitempty"`
}

// RawMessage is a message as delivered by an email source. Every field is
// optional. ID is the source's own id (a Gmail id, an IMAP UID); GmailID is
// set only when the message is known to Gmail under that hex id.
type RawMessage struct {
	ID           string
	GmailID      string
	MessageID    string
	ThreadID     string
	Subject      string
	From         string
	To           string
	Cc           string
	Bcc          string
	ReplyTo      string
	Date         string
	InternalDate int64 // milliseconds since epoch
	Body         string
	PlainBody    string
	Snippet      string
	Labels       []string
	Starred      bool
	InInbox      bool
	Unread       bool
	Attachments  []AttachmentRef
}

// Record is a normalised message. It is never modified after NewRecord;
// cleaning operations return a new Record.
type Record struct {
	id             string
	gmailID        string
	messageID      string
	threadID       string
	subject        string
	from           string
	to             string
	cc             string
	bcc            string
	replyTo        string
	date           time.Time
	body           string
	plainBody      string
	snippet        string
	labels         []string
	starred        bool
	inInbox        bool
	unread         bool
	hasAttachments bool
	attachments    []AttachmentRef

	permalink   string
	senderEmail string
	senderName  string
}

var (
	namedAddress = regexp.MustCompile(`^\s*"?([^"<]*?)"?\s*<([^<>\s]+@[^<>\s]+)>`)
	bareAddress  = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// NewRecord builds a record from raw, filling defaults for missing fields.
// now supplies the date when raw carries none that can be parsed.
func NewRecord(raw *RawMessage, now func() time.Time) *Record {
	if raw == nil {
		raw = &RawMessage{}
	}
	if now == nil {
		now = time.Now
	}

	r := &Record{
		id:          strings.TrimSpace(raw.ID),
		gmailID:     strings.TrimSpace(raw.GmailID),
		messageID:   strings.Trim(strings.TrimSpace(raw.MessageID), "<>"),
		threadID:    raw.ThreadID,
		subject:     strings.TrimSpace(raw.Subject),
		from:        raw.From,
		to:          raw.To,
		cc:          raw.Cc,
		bcc:         raw.Bcc,
		replyTo:     raw.ReplyTo,
		body:        raw.Body,
		plainBody:   raw.PlainBody,
		snippet:     raw.Snippet,
		labels:      append([]string(nil), raw.Labels...),
		starred:     raw.Starred,
		inInbox:     raw.InInbox,
		unread:      raw.Unread,
		attachments: append([]AttachmentRef(nil), raw.Attachments...),
	}
	if r.id == "" {
		r.id = strings.TrimSpace(raw.MessageID)
	}
	if r.subject == "" {
		r.subject = DefaultSubject
	}
	if r.plainBody == "" && r.body != "" {
		r.plainBody = transform.String(transform.Apply(r.body, transform.HTMLToText))
	}
	r.hasAttachments = len(r.attachments) > 0
	r.date = recordDate(raw, now)
	r.permalink = Permalink(r.gmailID, r.messageID)
	r.senderName, r.senderEmail = SplitSender(r.from)
	return r
}

func recordDate(raw *RawMessage, now func() time.Time) time.Time {
	if raw.Date != "" {
		if t, err := transform.ParseDate(raw.Date, time.UTC); err == nil {
			return t
		}
	}
	if raw.InternalDate > 0 {
		return time.UnixMilli(raw.InternalDate).UTC()
	}
	return now()
}

// Permalink builds a Gmail link to a message. A Gmail id gives a direct link;
// otherwise the Message-ID gives a search link. Without either there is no
// link that would resolve, and Permalink returns "".
func Permalink(gmailID, messageID string) string {
	if gmailID != "" {
		return PermalinkBase + gmailID
	}
	if messageID != "" {
		return SearchPermalinkBase + url.PathEscape(messageID)
	}
	return ""
}

// SplitSender extracts the display name and address from a From header. A
// header without a display name yields the address for both.
func SplitSender(from string) (name, address string) {
	if m := namedAddress.FindStringSubmatch(from); m != nil {
		name = strings.TrimSpace(m[1])
		address = strings.ToLower(m[2])
		if name == "" {
			name = address
		}
		return name, address
	}
	if m := bareAddress.FindString(from); m != "" {
		address = strings.ToLower(m)
		return address, address
	}
	return strings.TrimSpace(from), ""
}

func (r *Record) ID() string { return r.id }
func (r *Record) GmailID() string { return r.gmailID }
func (r *Record) MessageID() string { return r.messageID }
func (r *Record) ThreadID() string { return r.threadID }
func (r *Record) Subject() string { return r.subject }
func (r *Record) From() string { return r.from }
func (r *Record) To() string { return r.to }
func (r *Record) Cc() string { return r.cc }
func (r *Record) Bcc() string { return r.bcc }
func (r *Record) ReplyTo() string { return r.replyTo }
func (r *Record) Date() time.Time { return r.date }
func (r *Record) Body() string { return r.body }
func (r *Record) PlainBody() string { return r.plainBody }
func (r *Record) Snippet() string { return r.snippet }
func (r *Record) Starred() bool { return r.starred }
func (r *Record) InInbox() bool { return r.inInbox }
func (r *Record) Unread() bool { return r.unread }
func (r *Record) HasAttachments() bool { return r.hasAttachments }
func (r *Record) Permalink() string { return r.permalink }
func (r *Record) SenderEmail() string { return r.senderEmail }
func (r *Record) SenderName() string { return r.senderName }
func (r *Record) Labels() []string { return append([]string(nil), r.labels...) }
func (r *Record) Attachments() []AttachmentRef { return append([]AttachmentRef(nil), r.attachments...) }

// Preview returns the snippet, or the first n characters of the plain body.
func (r *Record) Preview(n int) string {
	if s := strings.TrimSpace(r.snippet); s != "" {
		return s
	}
	text := strings.Join(strings.Fields(r.plainBody), " ")
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

var (
	trackingToken = regexp.MustCompile(`(?i)\s*\[(?:#|ref:|ticket[:#]|case[:#])[^\]]*\]`)
	linkPattern   = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// WithoutTrackingIDs returns a copy with bracketed tracking tokens removed
// from the subject and utm_* parameters removed from links in the bodies.
func (r *Record) WithoutTrackingIDs() *Record {
	clean := *r
	clean.labels = r.Labels()
	clean.attachments = r.Attachments()
	clean.subject = strings.TrimSpace(trackingToken.ReplaceAllString(r.subject, ""))
	if clean.subject == "" {
		clean.subject = DefaultSubject
	}
	clean.body = linkPattern.ReplaceAllStringFunc(r.body, stripUTM)
	clean.plainBody = linkPattern.ReplaceAllStringFunc(r.plainBody, stripUTM)
	return &clean
}

type recordJSON struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	Subject        string          `json:"subject"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	Cc             string          `json:"cc,omitempty"`
	Bcc            string          `json:"bcc,omitempty"`
	ReplyTo        string          `json:"reply_to,omitempty"`
	Date           string          `json:"date"`
	Snippet        string          `json:"snippet"`
	Labels         []string        `json:"labels"`
	Starred        bool            `json:"starred"`
	InInbox        bool            `json:"in_inbox"`
	Unread         bool            `json:"unread"`
	HasAttachments bool            `json:"has_attachments"`
	Attachments    []AttachmentRef `json:"attachments,omitempty"`
	Permalink      string          `json:"permalink"`
	SenderEmail    string          `json:"sender_email"`
	SenderName     string          `json:"sender_name"`
}

// MarshalJSON renders the record without its bodies.
func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		ID:             r.id,
		ThreadID:       r.threadID,
		Subject:        r.subject,
		From:           r.from,
		To:             r.to,
		Cc:             r.cc,
		Bcc:            r.bcc,
		ReplyTo:        r.replyTo,
		Date:           transform.FormatISO(r.date),
		Snippet:        r.Preview(200),
		Labels:         r.Labels(),
		Starred:        r.starred,
		InInbox:        r.inInbox,
		Unread:         r.unread,
		HasAttachments: r.hasAttachments,
		Attachments:    r.attachments,
		Permalink:      r.permalink,
		SenderEmail:    r.senderEmail,
		SenderName:     r.senderName,
	})
}
