package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmail-notion-relay/internal/config"
	"gmail-notion-relay/internal/dedupe"
	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/mapping"
	"gmail-notion-relay/internal/metrics"
	"gmail-notion-relay/internal/model"
	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/transform"
)

type stubSource struct {
	messages map[string]*email.RawMessage
	calls    int
}

func (s *stubSource) GetMessage(_ context.Context, id string) (*email.RawMessage, error) {
	s.calls++
	m, ok := s.messages[id]
	if !ok {
		return nil, errors.New("message not found")
	}
	return m, nil
}

type stubNotion struct {
	db        *notion.Database
	dbErr     error
	createErr error
	created   map[string]notion.PropertyValue
	added     []string
	calls     int
}

func (n *stubNotion) GetDatabase(context.Context, string, string) (*notion.Database, error) {
	n.calls++
	return n.db, n.dbErr
}

func (n *stubNotion) CreatePage(_ context.Context, _, _ string, properties map[string]notion.PropertyValue) (*notion.Page, error) {
	n.calls++
	if n.createErr != nil {
		return nil, n.createErr
	}
	n.created = properties
	return &notion.Page{ID: "page-1", URL: "https://notion.so/page-1"}, nil
}

func (n *stubNotion) AddURLProperty(_ context.Context, _, _, name string) error {
	n.calls++
	n.added = append(n.added, name)
	return nil
}

type stubStore struct {
	settings model.Settings
	mappings []model.PropertyMapping
	logs     []model.SaveLog
}

func (s *stubStore) GetSettings() (*model.Settings, error) {
	settings := s.settings
	return &settings, nil
}

func (s *stubStore) ListEnabledMappings(string) ([]model.PropertyMapping, error) {
	return s.mappings, nil
}

func (s *stubStore) LogSave(entry *model.SaveLog) error {
	s.logs = append(s.logs, *entry)
	return nil
}

type stubChecker struct {
	outcome dedupe.Outcome
}

func (c stubChecker) Check(context.Context, string, string, *email.Record) dedupe.Outcome {
	return c.outcome
}

type fixture struct {
	source  *stubSource
	notion  *stubNotion
	store   *stubStore
	metrics *metrics.Metrics
	svc     *SaveService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		source: &stubSource{messages: map[string]*email.RawMessage{
			"msg123": {ID: "msg123", GmailID: "msg123", Subject: "Re: Invoice", From: "Jane Doe <jane@co.com>"},
		}},
		notion: &stubNotion{db: &notion.Database{Title: "Inbox", Properties: []notion.PropertyDescriptor{
			{Name: "Title", Kind: notion.KindTitle, IsTitle: true},
			{Name: "Link", Kind: notion.KindURL},
		}}},
		store: &stubStore{
			settings: model.Settings{NotionAPIKey: "secret", DatabaseID: "db1"},
			mappings: []model.PropertyMapping{
				{NotionPropertyName: "Title", Kind: notion.KindTitle, Enabled: true, EmailField: email.FieldSubject, Transformation: transform.RemovePrefixes},
				{NotionPropertyName: "Link", Kind: notion.KindURL, Enabled: true, EmailField: email.FieldPermalink},
			},
		},
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
	}
	registry := mapping.NewRegistry(mapping.RegistryOptions{Engine: transform.NewEngine(time.UTC)})
	f.svc = NewSaveService(f.source, f.notion, f.store, mapping.NewService(registry),
		stubChecker{outcome: dedupe.Outcome{Status: dedupe.StatusNotDuplicate}}, f.metrics, config.NotionConfig{})
	return f
}

func TestConnectionFallsBackToDefaults(t *testing.T) {
	f := newFixture(t)
	f.store.settings = model.Settings{DatabaseID: "db-from-settings"}
	f.svc.defaults = config.NotionConfig{APIKey: "env-key", DatabaseID: "env-db"}

	conn, err := f.svc.Connection()
	require.NoError(t, err)
	assert.Equal(t, Connection{APIKey: "env-key", DatabaseID: "db-from-settings"}, conn)
}

func TestIncompleteConfigurationStopsBeforeExternalCalls(t *testing.T) {
	f := newFixture(t)
	f.store.settings = model.Settings{NotionAPIKey: "secret"}

	_, err := f.svc.Save(context.Background(), "msg123")
	assert.ErrorIs(t, err, ErrIncompleteConfiguration)
	_, err = f.svc.Preview(context.Background(), "msg123")
	assert.ErrorIs(t, err, ErrIncompleteConfiguration)
	_, err = f.svc.CheckDuplicate(context.Background(), "msg123")
	assert.ErrorIs(t, err, ErrIncompleteConfiguration)

	assert.Zero(t, f.source.calls)
	assert.Zero(t, f.notion.calls)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)

	preview, err := f.svc.Preview(context.Background(), "msg123")
	require.NoError(t, err)
	assert.Equal(t, "Inbox", preview.DatabaseTitle)
	assert.Equal(t, 2, preview.MappedCount)
	assert.Equal(t, notion.PropertyValue{"title": []notion.TextRun{notion.Text("Invoice")}}, preview.Properties["Title"])
	assert.Nil(t, f.notion.created)
}

func TestPreviewRaw(t *testing.T) {
	f := newFixture(t)
	raw := "From: Jane Doe <jane@co.com>\r\nSubject: Fwd: Contract\r\nMessage-Id: <abc@co.com>\r\nContent-Type: text/plain\r\n\r\nHello\r\n"

	preview, err := f.svc.PreviewRaw(context.Background(), strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, notion.PropertyValue{"title": []notion.TextRun{notion.Text("Contract")}}, preview.Properties["Title"])
	assert.Zero(t, f.source.calls)
}

func TestSaveCreatesPageAndLogs(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Save(context.Background(), "msg123")
	require.NoError(t, err)
	assert.Equal(t, "page-1", result.PageID)
	assert.Equal(t, 2, result.MappedCount)
	assert.False(t, result.LinkAdded)
	assert.Equal(t, notion.PropertyValue{"url": "https://mail.google.com/mail/u/0/#inbox/msg123"}, f.notion.created["Link"])
	assert.Empty(t, f.notion.added)

	require.Len(t, f.store.logs, 1)
	assert.Equal(t, model.SaveStatusSuccess, f.store.logs[0].Status)
	assert.Equal(t, "page-1", f.store.logs[0].PageID)
	assert.Equal(t, 2, f.store.logs[0].MappedCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SavesSucceeded))
}

func TestSaveAddsLinkPropertyWhenMissing(t *testing.T) {
	f := newFixture(t)
	f.notion.db.Properties = f.notion.db.Properties[:1]
	f.store.mappings = f.store.mappings[:1]

	result, err := f.svc.Save(context.Background(), "msg123")
	require.NoError(t, err)
	assert.True(t, result.LinkAdded)
	assert.Equal(t, []string{LinkPropertyName}, f.notion.added)
	assert.Equal(t, notion.PropertyValue{"url": "https://mail.google.com/mail/u/0/#inbox/msg123"}, f.notion.created[LinkPropertyName])
	assert.Equal(t, 2, result.MappedCount)
}

func TestSaveRejectsEmptyPage(t *testing.T) {
	f := newFixture(t)
	f.store.mappings = nil

	_, err := f.svc.Save(context.Background(), "msg123")
	assert.ErrorIs(t, err, ErrNothingToSave)
	assert.Nil(t, f.notion.created)
	require.Len(t, f.store.logs, 1)
	assert.Equal(t, model.SaveStatusRejected, f.store.logs[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SavesRejected))
}

func TestSaveReportsCreateFailure(t *testing.T) {
	f := newFixture(t)
	f.notion.createErr = &notion.APIError{Status: 400, Code: "validation_error", Message: "Title is not a property"}

	_, err := f.svc.Save(context.Background(), "msg123")
	var apiErr *notion.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "validation_error", apiErr.Code)

	require.Len(t, f.store.logs, 1)
	assert.Equal(t, model.SaveStatusFailure, f.store.logs[0].Status)
	assert.Contains(t, f.store.logs[0].ErrorMsg, "Title is not a property")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SavesFailed))
}

func TestSaveFetchFailure(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Save(context.Background(), "missing")
	assert.Error(t, err)
	assert.Zero(t, f.notion.calls)
}

func TestCheckDuplicateCountsOutcome(t *testing.T) {
	f := newFixture(t)
	f.svc.checker = stubChecker{outcome: dedupe.Outcome{Status: dedupe.StatusDuplicate, Match: &dedupe.Match{PageID: "p1"}}}

	out, err := f.svc.CheckDuplicate(context.Background(), "msg123")
	require.NoError(t, err)
	assert.Equal(t, dedupe.StatusDuplicate, out.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DuplicateChecks.WithLabelValues("duplicate")))
}
