package email

import (
	"net/url"
	"strings"
)

// Field names a value a mapping can read from a record.
type Field string

const (
	FieldID             Field = "id"
	FieldThreadID       Field = "threadId"
	FieldSubject        Field = "subject"
	FieldFrom           Field = "from"
	FieldTo             Field = "to"
	FieldCc             Field = "cc"
	FieldBcc            Field = "bcc"
	FieldReplyTo        Field = "replyTo"
	FieldDate           Field = "date"
	FieldBody           Field = "body"
	FieldPlainBody      Field = "plainBody"
	FieldSnippet        Field = "snippet"
	FieldLabels         Field = "labels"
	FieldStarred        Field = "starred"
	FieldInInbox        Field = "inInbox"
	FieldUnread         Field = "unread"
	FieldHasAttachments Field = "hasAttachments"
	FieldAttachments    Field = "attachments"
	FieldPermalink      Field = "permalink"
	FieldSenderEmail    Field = "senderEmail"
	FieldSenderName     Field = "senderName"
)

// FieldOption describes a source field for configuration forms.
type FieldOption struct {
	Field Field  `json:"field"`
	Label string `json:"label"`
}

// FieldOptions lists the selectable source fields in display order.
var FieldOptions = []FieldOption{
	{FieldSubject, "Subject"},
	{FieldFrom, "From"},
	{FieldSenderName, "Sender name"},
	{FieldSenderEmail, "Sender email"},
	{FieldTo, "To"},
	{FieldCc, "Cc"},
	{FieldBcc, "Bcc"},
	{FieldReplyTo, "Reply-To"},
	{FieldDate, "Date"},
	{FieldBody, "Body (HTML)"},
	{FieldPlainBody, "Body (plain text)"},
	{FieldSnippet, "Snippet"},
	{FieldLabels, "Labels"},
	{FieldStarred, "Starred"},
	{FieldInInbox, "In inbox"},
	{FieldUnread, "Unread"},
	{FieldHasAttachments, "Has attachments"},
	{FieldAttachments, "Attachment names"},
	{FieldPermalink, "Gmail link"},
	{FieldID, "Message ID"},
	{FieldThreadID, "Thread ID"},
}

// IsKnown reports whether f names a record field.
func (f Field) IsKnown() bool {
	for _, o := range FieldOptions {
		if o.Field == f {
			return true
		}
	}
	return false
}

// Value returns the named field, or nil for an unknown field. Lists come back
// as []string and flags as bool so transformations see their natural type.
func (r *Record) Value(f Field) any {
	switch f {
	case FieldID:
		return r.id
	case FieldThreadID:
		return r.threadID
	case FieldSubject:
		return r.subject
	case FieldFrom:
		return r.from
	case FieldTo:
		return r.to
	case FieldCc:
		return r.cc
	case FieldBcc:
		return r.bcc
	case FieldReplyTo:
		return r.replyTo
	case FieldDate:
		return r.date
	case FieldBody:
		return r.body
	case FieldPlainBody:
		return r.plainBody
	case FieldSnippet:
		return r.snippet
	case FieldLabels:
		return r.Labels()
	case FieldStarred:
		return r.starred
	case FieldInInbox:
		return r.inInbox
	case FieldUnread:
		return r.unread
	case FieldHasAttachments:
		return r.hasAttachments
	case FieldAttachments:
		names := make([]string, 0, len(r.attachments))
		for _, a := range r.attachments {
			names = append(names, a.Name)
		}
		return names
	case FieldPermalink:
		return r.permalink
	case FieldSenderEmail:
		return r.senderEmail
	case FieldSenderName:
		return r.senderName
	}
	return nil
}

func stripUTM(link string) string {
	// Keep trailing punctuation out of the parsed URL.
	trimmed := strings.TrimRight(link, ".,;:!?)")
	suffix := link[len(trimmed):]

	u, err := url.Parse(trimmed)
	if err != nil || u.RawQuery == "" {
		return link
	}
	q := u.Query()
	changed := false
	for key := range q {
		if strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
			changed = true
		}
	}
	if !changed {
		return link
	}
	u.RawQuery = q.Encode()
	return u.String() + suffix
}
