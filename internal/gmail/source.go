// Package gmail fetches messages from a Gmail mailbox through the Gmail API or IMAP.
package gmail

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"gmail-notion-relay/internal/config"
	"gmail-notion-relay/internal/email"
)

// ErrNotFound is returned when a message id does not exist in the mailbox.
var ErrNotFound = errors.New("message not found")

// Source reads messages by id.
type Source interface {
	GetMessage(ctx context.Context, id string) (*email.RawMessage, error)
	ListMessageIDs(ctx context.Context, query string, max int64) ([]string, error)
	Close() error
}

// NewSource picks the IMAP or Gmail API source according to cfg.
func NewSource(ctx context.Context, cfg *config.GmailConfig) (Source, error) {
	if cfg.UseIMAP {
		s, err := NewIMAPSource(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create IMAP source: %w", err)
		}
		logrus.Info("Using IMAP for email fetching")
		return s, nil
	}

	s, err := NewAPISource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail API source: %w", err)
	}
	logrus.Info("Using Gmail API for email fetching")
	return s, nil
}
