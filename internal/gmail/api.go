package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"gmail-notion-relay/internal/config"
	"gmail-notion-relay/internal/email"
)

// APISource reads messages through the Gmail REST API.
type APISource struct {
	service   *gmailapi.Service
	userEmail string
}

// NewAPISource creates a Gmail API source authorised by a refresh token.
func NewAPISource(ctx context.Context, cfg *config.GmailConfig) (*APISource, error) {
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmailapi.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmailapi.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}
	return newAPISource(service, cfg.UserEmail), nil
}

func newAPISource(service *gmailapi.Service, userEmail string) *APISource {
	if userEmail == "" {
		userEmail = "me"
	}
	return &APISource{service: service, userEmail: userEmail}
}

// GetMessage fetches one message in full format.
func (s *APISource) GetMessage(ctx context.Context, id string) (*email.RawMessage, error) {
	msg, err := s.service.Users.Messages.Get(s.userEmail, id).Format("full").Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return convertMessage(msg)
}

// ListMessageIDs returns up to max message ids matching a Gmail search query.
func (s *APISource) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	call := s.service.Users.Messages.List(s.userEmail).MaxResults(max).Context(ctx)
	if query != "" {
		call = call.Q(query)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Close is a no-op; the API client holds no connection.
func (s *APISource) Close() error {
	return nil
}

func convertMessage(msg *gmailapi.Message) (*email.RawMessage, error) {
	raw := &email.RawMessage{
		ID:           msg.Id,
		GmailID:      msg.Id,
		ThreadID:     msg.ThreadId,
		Snippet:      msg.Snippet,
		InternalDate: msg.InternalDate,
		Labels:       append([]string(nil), msg.LabelIds...),
	}
	for _, label := range msg.LabelIds {
		switch label {
		case "STARRED":
			raw.Starred = true
		case "INBOX":
			raw.InInbox = true
		case "UNREAD":
			raw.Unread = true
		}
	}
	if msg.Payload == nil {
		return raw, nil
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "subject":
			raw.Subject = header.Value
		case "from":
			raw.From = header.Value
		case "to":
			raw.To = header.Value
		case "cc":
			raw.Cc = header.Value
		case "bcc":
			raw.Bcc = header.Value
		case "reply-to":
			raw.ReplyTo = header.Value
		case "date":
			raw.Date = header.Value
		case "message-id":
			raw.MessageID = strings.Trim(header.Value, "<>")
		}
	}

	if err := walkParts(msg.Payload, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// walkParts collects text bodies and attachment references recursively.
func walkParts(part *gmailapi.MessagePart, raw *email.RawMessage) error {
	if part.Filename != "" && part.Body != nil {
		raw.Attachments = append(raw.Attachments, email.AttachmentRef{
			Name:        part.Filename,
			Size:        part.Body.Size,
			ContentType: part.MimeType,
			Handle:      part.Body.AttachmentId,
		})
		return nil
	}

	if part.Body != nil && part.Body.Data != "" {
		data, err := decodeBody(part.Body.Data)
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}
		switch part.MimeType {
		case "text/plain":
			if raw.PlainBody == "" {
				raw.PlainBody = string(data)
			}
		case "text/html":
			if raw.Body == "" {
				raw.Body = string(data)
			}
		}
	}

	for _, sub := range part.Parts {
		if err := walkParts(sub, raw); err != nil {
			return err
		}
	}
	return nil
}

// decodeBody accepts padded and unpadded base64url, which Gmail mixes.
func decodeBody(data string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
}
