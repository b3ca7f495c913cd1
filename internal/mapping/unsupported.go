package mapping

import (
	"context"
	"net/url"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
)

// FilesHandler keeps a mapping for files properties but never writes them;
// attachments go through a separate upload path.
type FilesHandler struct{}

func (FilesHandler) Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error) {
	return baseMapping(desc, form), nil
}

func (FilesHandler) Widgets(_ context.Context, _ string, _ notion.PropertyDescriptor, m *Mapping) []Widget {
	return []Widget{
		enabledWidget(m, false),
		{Type: WidgetInfo, Label: "Attachments are not copied to files properties when saving"},
	}
}

func (FilesHandler) Value(context.Context, *Mapping, *email.Record) (notion.PropertyValue, error) {
	return nil, nil
}

// AutoHandler covers properties Notion computes itself. They can never be
// enabled.
type AutoHandler struct{}

func (AutoHandler) Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error) {
	m := baseMapping(desc, form)
	m.Enabled = false
	return m, nil
}

func (AutoHandler) Widgets(_ context.Context, _ string, _ notion.PropertyDescriptor, _ *Mapping) []Widget {
	return []Widget{
		enabledWidget(nil, true),
		{Type: WidgetInfo, Label: "Managed by Notion"},
	}
}

func (AutoHandler) Value(context.Context, *Mapping, *email.Record) (notion.PropertyValue, error) {
	return nil, nil
}
