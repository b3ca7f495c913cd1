package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const multipartMessage = "From: =?UTF-8?Q?Ren=C3=A9e?= <renee@example.com>\r\n" +
	"To: team@example.com\r\n" +
	"Subject: Quarterly report\r\n" +
	"Date: Mon, 06 Jan 2025 09:15:00 +0000\r\n" +
	"Message-ID: <abc123@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
	"\r\n" +
	"--outer\r\n" +
	"Content-Type: multipart/alternative; boundary=\"inner\"\r\n" +
	"\r\n" +
	"--inner\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"See attached.\r\n" +
	"--inner\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>See attached.</p>\r\n" +
	"--inner--\r\n" +
	"--outer\r\n" +
	"Content-Type: application/pdf\r\n" +
	"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
	"\r\n" +
	"PDFDATA\r\n" +
	"--outer--\r\n"

func TestParseMIMEMultipart(t *testing.T) {
	raw, err := ParseMIME(strings.NewReader(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "Quarterly report", raw.Subject)
	assert.Equal(t, "Renée <renee@example.com>", raw.From)
	assert.Equal(t, "team@example.com", raw.To)
	assert.Equal(t, "abc123@example.com", raw.MessageID)
	assert.Equal(t, "See attached.", strings.TrimSpace(raw.PlainBody))
	assert.Equal(t, "<p>See attached.</p>", strings.TrimSpace(raw.Body))
	require.Len(t, raw.Attachments, 1)
	assert.Equal(t, "report.pdf", raw.Attachments[0].Name)
	assert.Equal(t, "application/pdf", raw.Attachments[0].ContentType)

	r := NewRecord(raw, fixedNow)
	assert.Equal(t, "Renée", r.SenderName())
	assert.Equal(t, "2025-01-06T09:15:00Z", r.Date().UTC().Format("2006-01-02T15:04:05Z07:00"))
	assert.True(t, r.HasAttachments())
	assert.Equal(t, "", r.GmailID())
	assert.Equal(t, SearchPermalinkBase+"abc123@example.com", r.Permalink())
}

func TestParseMIMESinglePart(t *testing.T) {
	msg := "From: bob@example.com\r\nSubject: Ping\r\nContent-Type: text/plain\r\n\r\nhello\r\n"
	raw, err := ParseMIME(strings.NewReader(msg))
	require.NoError(t, err)

	assert.Equal(t, "Ping", raw.Subject)
	assert.Equal(t, "hello", strings.TrimSpace(raw.PlainBody))
	assert.Equal(t, raw.PlainBody, raw.Body)
	assert.Empty(t, raw.Attachments)
}
