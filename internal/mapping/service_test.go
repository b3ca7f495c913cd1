package mapping

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/transform"
)

func testRecord() *email.Record {
	return email.NewRecord(&email.RawMessage{
		ID:      "msg123",
		GmailID: "msg123",
		Subject: "Re: Invoice",
		From:    "Jane Doe <jane@co.com>",
		Date:    "Wed, 19 Dec 2025 18:24:25 +0200",
	}, func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) })
}

func testRegistry() *Registry {
	return NewRegistry(RegistryOptions{Engine: transform.NewEngine(time.UTC)})
}

type resolverFunc func(kind notion.Kind) Handler

func (f resolverFunc) HandlerFor(kind notion.Kind) Handler { return f(kind) }

type stubHandler struct {
	value func(m *Mapping) (notion.PropertyValue, error)
}

func (stubHandler) Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error) {
	return baseMapping(desc, form), nil
}

func (stubHandler) Widgets(context.Context, string, notion.PropertyDescriptor, *Mapping) []Widget {
	return nil
}

func (h stubHandler) Value(_ context.Context, m *Mapping, _ *email.Record) (notion.PropertyValue, error) {
	return h.value(m)
}

func TestApplyEndToEnd(t *testing.T) {
	svc := NewService(testRegistry())

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{NotionPropertyName: "Title", Kind: notion.KindTitle, Enabled: true, EmailField: email.FieldSubject, Transformation: transform.RemovePrefixes},
		{NotionPropertyName: "Sender", Kind: notion.KindEmail, Enabled: true, EmailField: email.FieldFrom, Transformation: transform.ExtractEmail},
	})

	assert.Equal(t, map[string]notion.PropertyValue{
		"Title":  {"title": []notion.TextRun{notion.Text("Invoice")}},
		"Sender": {"email": "jane@co.com"},
	}, result.Properties)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 2, result.MappedCount)
}

func TestApplyPartialFailure(t *testing.T) {
	handler := stubHandler{value: func(m *Mapping) (notion.PropertyValue, error) {
		if m.NotionPropertyName == "Second" {
			return nil, errors.New("boom")
		}
		return notion.PropertyValue{"rich_text": []notion.TextRun{notion.Text(m.NotionPropertyName)}}, nil
	}}
	svc := NewService(resolverFunc(func(notion.Kind) Handler { return handler }))

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{NotionPropertyName: "First", Kind: notion.KindRichText, Enabled: true, EmailField: email.FieldSubject},
		{NotionPropertyName: "Second", Kind: notion.KindRichText, Enabled: true, EmailField: email.FieldSubject},
		{NotionPropertyName: "Third", Kind: notion.KindRichText, Enabled: true, EmailField: email.FieldSubject},
	})

	assert.Len(t, result.Properties, 2)
	assert.Contains(t, result.Properties, "First")
	assert.Contains(t, result.Properties, "Third")
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Second", result.Errors[0].Property)
	assert.Equal(t, "boom", result.Errors[0].Message)
	assert.Equal(t, 2, result.MappedCount)
}

func TestApplyRecoversFromPanics(t *testing.T) {
	handler := stubHandler{value: func(m *Mapping) (notion.PropertyValue, error) {
		if m.NotionPropertyName == "Bad" {
			panic("nil map")
		}
		return notion.PropertyValue{"number": 1.0}, nil
	}}
	svc := NewService(resolverFunc(func(notion.Kind) Handler { return handler }))

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{NotionPropertyName: "Bad", Kind: notion.KindNumber, Enabled: true},
		{NotionPropertyName: "Good", Kind: notion.KindNumber, Enabled: true},
	})

	assert.Equal(t, 1, result.MappedCount)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nil map")
}

func TestApplyPermalinkShortcut(t *testing.T) {
	called := false
	handler := stubHandler{value: func(*Mapping) (notion.PropertyValue, error) {
		called = true
		return nil, errors.New("should not be used")
	}}
	svc := NewService(resolverFunc(func(notion.Kind) Handler { return handler }))

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{NotionPropertyName: "Link", Kind: notion.KindRichText, Enabled: true, EmailField: email.FieldPermalink},
	})

	assert.False(t, called)
	assert.Equal(t, notion.PropertyValue{"url": "https://mail.google.com/mail/u/0/#inbox/msg123"}, result.Properties["Link"])

	noID := email.NewRecord(&email.RawMessage{Subject: "x"}, nil)
	result = svc.Apply(context.Background(), noID, []Mapping{
		{NotionPropertyName: "Link", Kind: notion.KindURL, Enabled: true, EmailField: email.FieldPermalink},
	})
	assert.Empty(t, result.Properties)
	assert.Empty(t, result.Errors)
}

func TestApplySkipsDisabledAndNilValues(t *testing.T) {
	svc := NewService(testRegistry())

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{NotionPropertyName: "Off", Kind: notion.KindTitle, Enabled: false, EmailField: email.FieldSubject},
		{NotionPropertyName: "Phone", Kind: notion.KindPhoneNumber, Enabled: true, EmailField: email.FieldCc},
		{NotionPropertyName: "Files", Kind: notion.KindFiles, Enabled: true},
		{NotionPropertyName: "Created", Kind: notion.KindCreatedTime, Enabled: true},
	})

	assert.Empty(t, result.Properties)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.MappedCount)
}

func TestApplyRequiresPropertyName(t *testing.T) {
	svc := NewService(testRegistry())

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{PropertyID: "abc", Kind: notion.KindTitle, Enabled: true, EmailField: email.FieldSubject},
	})

	assert.Empty(t, result.Properties)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "abc", result.Errors[0].Property)
	assert.Equal(t, ErrMissingPropertyName.Error(), result.Errors[0].Message)
}

func TestApplyDateMapping(t *testing.T) {
	svc := NewService(testRegistry())

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{NotionPropertyName: "Received", Kind: notion.KindDate, Enabled: true, EmailField: email.FieldDate},
		{NotionPropertyName: "Subject date", Kind: notion.KindDate, Enabled: true, EmailField: email.FieldSubject, Transformation: transform.ParseDateID},
	})

	assert.Equal(t, notion.PropertyValue{"date": notion.DateValue{Start: "2025-12-19T16:24:25.000Z"}}, result.Properties["Received"])
	assert.NotContains(t, result.Properties, "Subject date")
	assert.Empty(t, result.Errors)
}

func TestApplyStrictDatesReportsError(t *testing.T) {
	svc := NewService(NewRegistry(RegistryOptions{StrictDates: true}))

	result := svc.Apply(context.Background(), testRecord(), []Mapping{
		{NotionPropertyName: "Subject date", Kind: notion.KindDate, Enabled: true, EmailField: email.FieldSubject, Transformation: transform.ParseDateID},
	})

	assert.Empty(t, result.Properties)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Subject date", result.Errors[0].Property)
}
