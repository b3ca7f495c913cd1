package email

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

func TestNewRecordDefaults(t *testing.T) {
	r := NewRecord(&RawMessage{}, fixedNow)

	assert.Equal(t, "", r.ID())
	assert.Equal(t, DefaultSubject, r.Subject())
	assert.Equal(t, "", r.Permalink())
	assert.Equal(t, fixedNow(), r.Date())
	assert.False(t, r.HasAttachments())
	assert.Empty(t, r.Labels())

	assert.Equal(t, DefaultSubject, NewRecord(nil, fixedNow).Subject())
}

func TestNewRecordDerivedFields(t *testing.T) {
	r := NewRecord(&RawMessage{
		ID:          "msg123",
		GmailID:     "msg123",
		Subject:     "  Re: Invoice ",
		From:        "Jane Doe <Jane@Co.com>",
		Date:        "Wed, 19 Dec 2025 18:24:25 +0200",
		Body:        "<p>Hello<br>world</p>",
		Attachments: []AttachmentRef{{Name: "a.pdf", Size: 10}},
	}, fixedNow)

	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/msg123", r.Permalink())
	assert.Equal(t, "Re: Invoice", r.Subject())
	assert.Equal(t, "Jane Doe", r.SenderName())
	assert.Equal(t, "jane@co.com", r.SenderEmail())
	assert.Equal(t, time.Date(2025, 12, 19, 16, 24, 25, 0, time.UTC), r.Date().UTC())
	assert.Equal(t, "Hello\nworld", r.PlainBody())
	assert.True(t, r.HasAttachments())
}

func TestNewRecordFallsBackToInternalDate(t *testing.T) {
	r := NewRecord(&RawMessage{Date: "garbage", InternalDate: 1700000000000}, fixedNow)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), r.Date())

	r = NewRecord(&RawMessage{MessageID: "<abc@mail>"}, fixedNow)
	assert.Equal(t, "<abc@mail>", r.ID())
}

func TestPermalinkNeedsARealGmailReference(t *testing.T) {
	tests := []struct {
		name string
		raw  RawMessage
		want string
	}{
		{"gmail id", RawMessage{ID: "18c2f", GmailID: "18c2f", MessageID: "abc@mail"}, PermalinkBase + "18c2f"},
		{"message id", RawMessage{ID: "4821", MessageID: "<abc123@example.com>"}, SearchPermalinkBase + "abc123@example.com"},
		{"message id is escaped", RawMessage{MessageID: "a b/c@mail"}, SearchPermalinkBase + "a%20b%2Fc@mail"},
		{"imap uid only", RawMessage{ID: "4821"}, ""},
		{"nothing", RawMessage{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			assert.Equal(t, tt.want, NewRecord(&raw, fixedNow).Permalink())
		})
	}
}

func TestSplitSender(t *testing.T) {
	tests := []struct {
		from, name, address string
	}{
		{"Jane Doe <jane@co.com>", "Jane Doe", "jane@co.com"},
		{`"Doe, Jane" <jane@co.com>`, "Doe, Jane", "jane@co.com"},
		{"<jane@co.com>", "jane@co.com", "jane@co.com"},
		{"jane@co.com", "jane@co.com", "jane@co.com"},
		{"Mailer Daemon", "Mailer Daemon", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		name, address := SplitSender(tt.from)
		assert.Equal(t, tt.name, name, tt.from)
		assert.Equal(t, tt.address, address, tt.from)
	}
}

func TestRecordIsNotMutatedThroughAccessors(t *testing.T) {
	raw := &RawMessage{Labels: []string{"INBOX"}}
	r := NewRecord(raw, fixedNow)

	raw.Labels[0] = "SPAM"
	labels := r.Labels()
	labels[0] = "TRASH"

	assert.Equal(t, []string{"INBOX"}, r.Labels())
}

func TestValue(t *testing.T) {
	r := NewRecord(&RawMessage{
		ID:          "m1",
		GmailID:     "m1",
		Subject:     "Hi",
		Labels:      []string{"INBOX", "STARRED"},
		Starred:     true,
		Attachments: []AttachmentRef{{Name: "a.pdf"}, {Name: "b.png"}},
	}, fixedNow)

	assert.Equal(t, "Hi", r.Value(FieldSubject))
	assert.Equal(t, true, r.Value(FieldStarred))
	assert.Equal(t, []string{"INBOX", "STARRED"}, r.Value(FieldLabels))
	assert.Equal(t, []string{"a.pdf", "b.png"}, r.Value(FieldAttachments))
	assert.Equal(t, fixedNow(), r.Value(FieldDate))
	assert.Equal(t, "https://mail.google.com/mail/u/0/#inbox/m1", r.Value(FieldPermalink))
	assert.Nil(t, r.Value(Field("nope")))

	for _, o := range FieldOptions {
		assert.True(t, o.Field.IsKnown())
		assert.NotPanics(t, func() { r.Value(o.Field) })
	}
	assert.False(t, Field("nope").IsKnown())
}

func TestPreview(t *testing.T) {
	r := NewRecord(&RawMessage{Snippet: "short snippet", PlainBody: "ignored"}, fixedNow)
	assert.Equal(t, "short snippet", r.Preview(5))

	r = NewRecord(&RawMessage{PlainBody: "one  two\nthree four"}, fixedNow)
	assert.Equal(t, "one two three four", r.Preview(100))
	assert.Equal(t, "one t...", r.Preview(5))
}

func TestWithoutTrackingIDs(t *testing.T) {
	r := NewRecord(&RawMessage{
		Subject:   "Your order [#A1B2C3] shipped [ref:_00D1._500:ref]",
		PlainBody: "Track https://shop.example.com/o?id=7&utm_source=mail&utm_medium=email. Thanks",
		Labels:    []string{"INBOX"},
	}, fixedNow)

	clean := r.WithoutTrackingIDs()

	assert.Equal(t, "Your order shipped", clean.Subject())
	assert.Equal(t, "Track https://shop.example.com/o?id=7. Thanks", clean.PlainBody())
	assert.Equal(t, "Your order [#A1B2C3] shipped [ref:_00D1._500:ref]", r.Subject())
	assert.True(t, strings.Contains(r.PlainBody(), "utm_source"))
	assert.NotSame(t, r, clean)
}

func TestMarshalJSON(t *testing.T) {
	r := NewRecord(&RawMessage{ID: "m1", From: "Jane <jane@co.com>", Body: "<b>secret</b>"}, fixedNow)
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "m1", out["id"])
	assert.Equal(t, "jane@co.com", out["sender_email"])
	assert.Equal(t, "2025-06-01T12:00:00.000Z", out["date"])
	assert.NotContains(t, out, "body")
}
