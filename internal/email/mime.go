package email

import (
	"fmt"
	"io"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// ParseMIME reads an RFC 822 message. The result has no source id; callers
// that know one set RawMessage.ID themselves.
func ParseMIME(r io.Reader) (*RawMessage, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}
	defer mr.Close()

	raw := &RawMessage{}
	h := mr.Header
	raw.Subject = headerText(&h, "Subject")
	raw.From = headerText(&h, "From")
	raw.To = headerText(&h, "To")
	raw.Cc = headerText(&h, "Cc")
	raw.Bcc = headerText(&h, "Bcc")
	raw.ReplyTo = headerText(&h, "Reply-To")
	raw.Date = h.Get("Date")
	if id, err := h.MessageID(); err == nil {
		raw.MessageID = id
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		switch ph := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, err := ph.ContentType()
			if err != nil {
				continue
			}
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read part body: %w", err)
			}
			switch contentType {
			case "text/plain":
				if raw.PlainBody == "" {
					raw.PlainBody = string(content)
				}
			case "text/html":
				if raw.Body == "" {
					raw.Body = string(content)
				}
			}
		case *mail.AttachmentHeader:
			name, _ := ph.Filename()
			contentType, _, _ := ph.ContentType()
			size, err := io.Copy(io.Discard, p.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment %q: %w", name, err)
			}
			raw.Attachments = append(raw.Attachments, AttachmentRef{
				Name:        name,
				Size:        size,
				ContentType: contentType,
			})
		}
	}

	if raw.Body == "" && raw.PlainBody != "" {
		raw.Body = raw.PlainBody
	}
	return raw, nil
}

func headerText(h *mail.Header, key string) string {
	v, err := h.Text(key)
	if err != nil {
		return strings.TrimSpace(h.Get(key))
	}
	return strings.TrimSpace(v)
}
