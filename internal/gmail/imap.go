package gmail

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"gmail-notion-relay/internal/config"
	"gmail-notion-relay/internal/email"
)

// gmailMsgID is Gmail's IMAP extension item carrying the message id the web
// client shows in hex.
const gmailMsgID imap.FetchItem = "X-GM-MSGID"

// IMAPSource reads messages over IMAP. Message ids are mailbox UIDs.
type IMAPSource struct {
	mu      sync.Mutex
	client  *client.Client
	mailbox string
	gmail   bool
}

// NewIMAPSource connects and logs in.
func NewIMAPSource(cfg *config.GmailConfig) (*IMAPSource, error) {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", cfg.IMAPHost, cfg.IMAPPort), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(cfg.IMAPUser, cfg.IMAPPassword); err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	mailbox := cfg.IMAPMailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	gmailExt, err := c.Support("X-GM-EXT-1")
	if err != nil {
		c.Logout()
		return nil, fmt.Errorf("failed to read IMAP capabilities: %w", err)
	}
	return &IMAPSource{client: c, mailbox: mailbox, gmail: gmailExt}, nil
}

// GetMessage fetches one message by UID.
func (s *IMAPSource) GetMessage(ctx context.Context, id string) (*email.RawMessage, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid uid %q", ErrNotFound, id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.client.Select(s.mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", s.mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchInternalDate, imap.FetchUid}
	if s.gmail {
		items = append(items, gmailMsgID)
	}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqset, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		msg = m
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return convertIMAPMessage(msg, section, s.mailbox == "INBOX")
}

// ListMessageIDs returns the newest UIDs, optionally restricted to messages
// containing query.
func (s *IMAPSource) ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.client.Select(s.mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", s.mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	if query != "" {
		criteria.Text = []string{query}
	}
	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	return newestUIDs(uids, max), nil
}

// Close logs out.
func (s *IMAPSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client.Logout()
}

func newestUIDs(uids []uint32, max int64) []string {
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if max > 0 && int64(len(uids)) > max {
		uids = uids[:max]
	}
	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids
}

func convertIMAPMessage(msg *imap.Message, section *imap.BodySectionName, inInbox bool) (*email.RawMessage, error) {
	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("failed to get message body")
	}

	raw, err := email.ParseMIME(body)
	if err != nil {
		return nil, err
	}
	raw.ID = strconv.FormatUint(uint64(msg.Uid), 10)
	raw.GmailID = gmailID(msg)
	if !msg.InternalDate.IsZero() {
		raw.InternalDate = msg.InternalDate.UnixMilli()
	}

	raw.Unread = true
	for _, flag := range msg.Flags {
		switch flag {
		case imap.FlaggedFlag:
			raw.Starred = true
		case imap.SeenFlag:
			raw.Unread = false
		}
		raw.Labels = append(raw.Labels, flag)
	}
	raw.InInbox = inInbox
	return raw, nil
}

// gmailID renders X-GM-MSGID as the hex id used in Gmail web links, or ""
// when the server did not send it.
func gmailID(msg *imap.Message) string {
	var n uint64
	switch v := msg.Items[gmailMsgID].(type) {
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return ""
		}
		n = parsed
	case uint64:
		n = v
	case uint32:
		n = uint64(v)
	case int64:
		n = uint64(v)
	default:
		return ""
	}
	if n == 0 {
		return ""
	}
	return strconv.FormatUint(n, 16)
}
