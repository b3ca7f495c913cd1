package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"gmail-notion-relay/internal/config"
	"gmail-notion-relay/internal/dedupe"
	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/mapping"
	"gmail-notion-relay/internal/metrics"
	"gmail-notion-relay/internal/model"
	"gmail-notion-relay/internal/notion"
)

// LinkPropertyName is the url property added to databases that have none.
const LinkPropertyName = "Email Link"

var (
	// ErrIncompleteConfiguration is returned before any external call when
	// the Notion API key or target database is missing.
	ErrIncompleteConfiguration = errors.New("notion api key and database must be configured")
	// ErrNothingToSave is returned when no mapping produced a value.
	ErrNothingToSave = errors.New("no properties were mapped")
	// ErrInvalidMessage is returned for uploaded messages that cannot be parsed.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrFetchFailed wraps email source failures.
	ErrFetchFailed = errors.New("failed to fetch message")
)

// MessageSource fetches messages by id.
type MessageSource interface {
	GetMessage(ctx context.Context, id string) (*email.RawMessage, error)
}

// NotionAPI is the part of the Notion client used when saving.
type NotionAPI interface {
	GetDatabase(ctx context.Context, apiKey, databaseID string) (*notion.Database, error)
	CreatePage(ctx context.Context, apiKey, databaseID string, properties map[string]notion.PropertyValue) (*notion.Page, error)
	AddURLProperty(ctx context.Context, apiKey, databaseID, name string) error
}

// Store persists settings, mappings and save logs.
type Store interface {
	GetSettings() (*model.Settings, error)
	ListEnabledMappings(databaseID string) ([]model.PropertyMapping, error)
	LogSave(entry *model.SaveLog) error
}

// Mapper applies mappings to a record.
type Mapper interface {
	Apply(ctx context.Context, rec *email.Record, mappings []mapping.Mapping) mapping.Result
}

// DuplicateChecker reports whether a record was already saved.
type DuplicateChecker interface {
	Check(ctx context.Context, apiKey, databaseID string, rec *email.Record) dedupe.Outcome
}

// Connection is the Notion key and database a request works against.
type Connection struct {
	APIKey     string
	DatabaseID string
}

// Preview is what a save would write, without writing it.
type Preview struct {
	Message       *email.Record `json:"message"`
	DatabaseID    string        `json:"database_id"`
	DatabaseTitle string        `json:"database_title"`
	mapping.Result
}

// SaveResult describes a created page.
type SaveResult struct {
	PageID      string                 `json:"page_id"`
	PageURL     string                 `json:"page_url"`
	MappedCount int                    `json:"mapped_count"`
	Errors      []mapping.MappingError `json:"errors"`
	LinkAdded   bool                   `json:"link_added"`
}

// SaveService previews and saves emails as Notion pages.
type SaveService struct {
	source   MessageSource
	notion   NotionAPI
	store    Store
	mapper   Mapper
	checker  DuplicateChecker
	metrics  *metrics.Metrics
	defaults config.NotionConfig
	now      func() time.Time
}

// NewSaveService creates a save service. defaults supplies the API key and
// database when none were saved in settings.
func NewSaveService(source MessageSource, api NotionAPI, store Store, mapper Mapper, checker DuplicateChecker, m *metrics.Metrics, defaults config.NotionConfig) *SaveService {
	return &SaveService{
		source:   source,
		notion:   api,
		store:    store,
		mapper:   mapper,
		checker:  checker,
		metrics:  m,
		defaults: defaults,
		now:      time.Now,
	}
}

// Connection resolves the key and database from settings, falling back to
// the configured defaults field by field.
func (s *SaveService) Connection() (Connection, error) {
	settings, err := s.store.GetSettings()
	if err != nil {
		return Connection{}, err
	}
	conn := Connection{APIKey: settings.NotionAPIKey, DatabaseID: settings.DatabaseID}
	if conn.APIKey == "" {
		conn.APIKey = s.defaults.APIKey
	}
	if conn.DatabaseID == "" {
		conn.DatabaseID = s.defaults.DatabaseID
	}
	if conn.APIKey == "" || conn.DatabaseID == "" {
		return Connection{}, ErrIncompleteConfiguration
	}
	return conn, nil
}

// APIKey resolves the Notion key alone, for browsing databases before one is
// selected.
func (s *SaveService) APIKey() (string, error) {
	settings, err := s.store.GetSettings()
	if err != nil {
		return "", err
	}
	if settings.NotionAPIKey != "" {
		return settings.NotionAPIKey, nil
	}
	if s.defaults.APIKey != "" {
		return s.defaults.APIKey, nil
	}
	return "", ErrIncompleteConfiguration
}

// Preview maps a message without creating a page.
func (s *SaveService) Preview(ctx context.Context, messageID string) (*Preview, error) {
	conn, err := s.Connection()
	if err != nil {
		return nil, err
	}
	rec, err := s.fetch(ctx, messageID)
	if err != nil {
		return nil, err
	}
	preview, _, err := s.preview(ctx, conn, rec)
	return preview, err
}

// PreviewRaw maps an uploaded RFC 822 message without creating a page.
func (s *SaveService) PreviewRaw(ctx context.Context, r io.Reader) (*Preview, error) {
	conn, err := s.Connection()
	if err != nil {
		return nil, err
	}
	raw, err := email.ParseMIME(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	preview, _, err := s.preview(ctx, conn, email.NewRecord(raw, s.now))
	return preview, err
}

// CheckDuplicate looks for a page already holding the message. Only
// configuration and fetch problems are returned as errors; a failing check is
// reported in the outcome.
func (s *SaveService) CheckDuplicate(ctx context.Context, messageID string) (dedupe.Outcome, error) {
	conn, err := s.Connection()
	if err != nil {
		return dedupe.Outcome{}, err
	}
	rec, err := s.fetch(ctx, messageID)
	if err != nil {
		return dedupe.Outcome{}, err
	}

	out := s.checker.Check(ctx, conn.APIKey, conn.DatabaseID, rec)
	s.metrics.DuplicateChecks.WithLabelValues(string(out.Status)).Inc()
	return out, nil
}

// Save maps a message and creates a page from it. A database without a url
// property gets one so the page links back to the email.
func (s *SaveService) Save(ctx context.Context, messageID string) (*SaveResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.SaveDuration.Observe(time.Since(start).Seconds())
	}()

	conn, err := s.Connection()
	if err != nil {
		return nil, err
	}
	rec, err := s.fetch(ctx, messageID)
	if err != nil {
		return nil, err
	}
	preview, db, err := s.preview(ctx, conn, rec)
	if err != nil {
		s.record(messageID, conn, model.SaveStatusFailure, nil, 0, 0, err)
		s.metrics.SavesFailed.Inc()
		return nil, err
	}
	s.metrics.MappingErrors.Add(float64(len(preview.Errors)))

	properties := preview.Properties
	linkAdded := false
	if len(db.URLProperties()) == 0 && rec.Permalink() != "" {
		if err := s.notion.AddURLProperty(ctx, conn.APIKey, conn.DatabaseID, LinkPropertyName); err != nil {
			logrus.Warnf("Failed to add %q to database %s: %v", LinkPropertyName, conn.DatabaseID, err)
		} else {
			properties[LinkPropertyName] = notion.PropertyValue{"url": rec.Permalink()}
			linkAdded = true
		}
	}

	if len(properties) == 0 {
		s.record(messageID, conn, model.SaveStatusRejected, nil, 0, len(preview.Errors), ErrNothingToSave)
		s.metrics.SavesRejected.Inc()
		return nil, ErrNothingToSave
	}

	page, err := s.notion.CreatePage(ctx, conn.APIKey, conn.DatabaseID, properties)
	if err != nil {
		s.record(messageID, conn, model.SaveStatusFailure, nil, len(properties), len(preview.Errors), err)
		s.metrics.SavesFailed.Inc()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	s.record(messageID, conn, model.SaveStatusSuccess, page, len(properties), len(preview.Errors), nil)
	s.metrics.SavesSucceeded.Inc()

	logrus.WithFields(logrus.Fields{
		"message_id": messageID,
		"page_id":    page.ID,
		"mapped":     len(properties),
		"errors":     len(preview.Errors),
	}).Info("Email saved to Notion")

	return &SaveResult{
		PageID:      page.ID,
		PageURL:     page.URL,
		MappedCount: len(properties),
		Errors:      preview.Errors,
		LinkAdded:   linkAdded,
	}, nil
}

func (s *SaveService) fetch(ctx context.Context, messageID string) (*email.Record, error) {
	raw, err := s.source.GetMessage(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrFetchFailed, messageID, err)
	}
	return email.NewRecord(raw, s.now), nil
}

func (s *SaveService) preview(ctx context.Context, conn Connection, rec *email.Record) (*Preview, *notion.Database, error) {
	db, err := s.notion.GetDatabase(ctx, conn.APIKey, conn.DatabaseID)
	if err != nil {
		return nil, nil, err
	}
	mappings, err := s.store.ListEnabledMappings(conn.DatabaseID)
	if err != nil {
		return nil, nil, err
	}

	return &Preview{
		Message:       rec,
		DatabaseID:    conn.DatabaseID,
		DatabaseTitle: db.Title,
		Result:        s.mapper.Apply(ctx, rec, mappings),
	}, db, nil
}

// record writes a save log; a logging failure never fails the save.
func (s *SaveService) record(messageID string, conn Connection, status string, page *notion.Page, mapped, errorCount int, cause error) {
	entry := &model.SaveLog{
		MessageID:   messageID,
		DatabaseID:  conn.DatabaseID,
		Status:      status,
		MappedCount: mapped,
		ErrorCount:  errorCount,
		CreatedAt:   s.now(),
	}
	if page != nil {
		entry.PageID = page.ID
		entry.PageURL = page.URL
	}
	if cause != nil {
		entry.ErrorMsg = cause.Error()
	}
	if err := s.store.LogSave(entry); err != nil {
		logrus.Errorf("Failed to log save of %s: %v", messageID, err)
	}
}
