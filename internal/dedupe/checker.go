// Package dedupe reports whether an email was already saved to a Notion
// database. The check is advisory: it never blocks a save and never returns an
// error to its caller.
package dedupe

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
)

// scanLimit is how many recent pages are searched when a filtered query fails.
const scanLimit = 50

// Status is the kind of outcome a check produced.
type Status string

const (
	StatusNoURLProperty   Status = "no_url_property"
	StatusNoLinkAvailable Status = "no_link_available"
	StatusNotDuplicate    Status = "not_duplicate"
	StatusDuplicate       Status = "duplicate"
	StatusCheckFailed     Status = "check_failed"
)

// Match identifies the existing page an email was saved to.
type Match struct {
	PageID          string `json:"page_id"`
	PageURL         string `json:"page_url"`
	PageTitle       string `json:"page_title"`
	MatchedProperty string `json:"matched_property"`
}

// Outcome is the result of a duplicate check. Match is set only for
// StatusDuplicate and Reason only for StatusCheckFailed.
type Outcome struct {
	Status Status `json:"status"`
	Token  string `json:"token,omitempty"`
	Match  *Match `json:"match,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Store is the part of the Notion API a check needs.
type Store interface {
	GetDatabase(ctx context.Context, apiKey, databaseID string) (*notion.Database, error)
	QueryDatabase(ctx context.Context, apiKey, databaseID string, q notion.Query) ([]notion.Page, error)
}

// Checker looks for pages whose url properties already hold an email's id.
type Checker struct {
	store Store
}

// NewChecker creates a duplicate checker
func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// Check searches databaseID for a page linking to rec. Url properties are
// tried in schema order with a contains filter; when the filter is rejected
// the most recent pages are scanned instead.
func (c *Checker) Check(ctx context.Context, apiKey, databaseID string, rec *email.Record) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = failed(fmt.Errorf("duplicate check panicked: %v", p))
		}
	}()

	db, err := c.store.GetDatabase(ctx, apiKey, databaseID)
	if err != nil {
		return failed(err)
	}
	urlProps := db.URLProperties()
	if len(urlProps) == 0 {
		return Outcome{Status: StatusNoURLProperty}
	}

	source := rec.Permalink()
	if source == "" {
		source = rec.GmailID()
	}
	token, extractor, ok := ExtractToken(source)
	if !ok {
		return Outcome{Status: StatusNoLinkAvailable}
	}

	s := &search{checker: c, ctx: ctx, apiKey: apiKey, databaseID: databaseID, token: token}
	for _, prop := range urlProps {
		match, err := s.property(prop.Name)
		if err != nil {
			out = failed(err)
			out.Token = token
			return out
		}
		if match != nil {
			logrus.WithFields(logrus.Fields{
				"message_id": rec.ID(),
				"page_id":    match.PageID,
				"property":   match.MatchedProperty,
				"extractor":  extractor,
			}).Info("Email already saved")
			return Outcome{Status: StatusDuplicate, Token: token, Match: match}
		}
	}
	return Outcome{Status: StatusNotDuplicate, Token: token}
}

func failed(err error) Outcome {
	logrus.Warnf("Duplicate check failed: %v", err)
	return Outcome{Status: StatusCheckFailed, Reason: err.Error()}
}

// search holds the state of one check. Recent pages are fetched at most once
// however many properties fall back to scanning.
type search struct {
	checker    *Checker
	ctx        context.Context
	apiKey     string
	databaseID string
	token      string
	recent     []notion.Page
	scanned    bool
}

func (s *search) property(name string) (*Match, error) {
	pages, err := s.checker.store.QueryDatabase(s.ctx, s.apiKey, s.databaseID, notion.Query{
		PageSize: 1,
		Filter:   &notion.Filter{Property: name, URLContains: s.token},
	})
	if err == nil {
		if len(pages) == 0 {
			return nil, nil
		}
		return matchFrom(&pages[0], name), nil
	}

	if notion.IsValidationError(err) {
		logrus.Infof("Notion rejected the url filter on %s, scanning recent pages", name)
	} else {
		logrus.Warnf("Filtered query on %s failed, scanning recent pages: %v", name, err)
	}
	if err := s.loadRecent(); err != nil {
		return nil, err
	}
	for i := range s.recent {
		if strings.Contains(s.recent[i].URLValue(name), s.token) {
			return matchFrom(&s.recent[i], name), nil
		}
	}
	return nil, nil
}

func (s *search) loadRecent() error {
	if s.scanned {
		return nil
	}
	pages, err := s.checker.store.QueryDatabase(s.ctx, s.apiKey, s.databaseID, notion.Query{PageSize: scanLimit})
	if err != nil {
		return fmt.Errorf("failed to scan recent pages: %w", err)
	}
	s.recent, s.scanned = pages, true
	return nil
}

func matchFrom(p *notion.Page, property string) *Match {
	return &Match{
		PageID:          p.ID,
		PageURL:         p.URL,
		PageTitle:       p.Title(),
		MatchedProperty: property,
	}
}
