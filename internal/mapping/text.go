package mapping

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/transform"
)

// TextHandler maps an email field through a transformation into title,
// rich_text, url, email, number, phone_number and date properties.
type TextHandler struct {
	engine      *transform.Engine
	strictDates bool
}

// NewTextHandler creates a text handler. With strictDates an unparseable value
// on a date property is an error instead of an omitted property.
func NewTextHandler(engine *transform.Engine, strictDates bool) *TextHandler {
	if engine == nil {
		engine = transform.NewEngine(nil)
	}
	return &TextHandler{engine: engine, strictDates: strictDates}
}

// DefaultField is the email field a new mapping of kind starts from.
func DefaultField(kind notion.Kind) email.Field {
	switch kind {
	case notion.KindTitle:
		return email.FieldSubject
	case notion.KindRichText:
		return email.FieldSnippet
	case notion.KindEmail:
		return email.FieldSenderEmail
	case notion.KindURL:
		return email.FieldPermalink
	case notion.KindDate:
		return email.FieldDate
	case notion.KindPhoneNumber:
		return email.FieldFrom
	default:
		return email.FieldSubject
	}
}

func (h *TextHandler) Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error) {
	m := baseMapping(desc, form)

	field := email.Field(strings.TrimSpace(form.Get(FormEmailField)))
	if field == "" {
		field = DefaultField(desc.Kind)
	}
	if !field.IsKnown() {
		return Mapping{}, fmt.Errorf("unknown email field %q", field)
	}
	m.EmailField = field

	m.Transformation = transform.None
	if id := transform.ID(strings.TrimSpace(form.Get(FormTransformation))); id != "" {
		if !knownTransformation(id) {
			return Mapping{}, fmt.Errorf("unknown transformation %q", id)
		}
		m.Transformation = id
	}
	return m, nil
}

func (h *TextHandler) Widgets(_ context.Context, _ string, desc notion.PropertyDescriptor, m *Mapping) []Widget {
	field := DefaultField(desc.Kind)
	transformation := transform.None
	if m != nil {
		if m.EmailField != "" {
			field = m.EmailField
		}
		if m.Transformation != "" {
			transformation = m.Transformation
		}
	}

	fields := make([]WidgetOption, 0, len(email.FieldOptions))
	for _, o := range email.FieldOptions {
		fields = append(fields, WidgetOption{Value: string(o.Field), Label: o.Label, Selected: o.Field == field})
	}
	transforms := make([]WidgetOption, 0, len(transform.Options))
	for _, o := range transform.Options {
		transforms = append(transforms, WidgetOption{Value: string(o.ID), Label: o.Label, Selected: o.ID == transformation})
	}

	return []Widget{
		enabledWidget(m, false),
		{Type: WidgetSelect, Name: FormEmailField, Label: "Email field", Value: string(field), Options: fields},
		{Type: WidgetSelect, Name: FormTransformation, Label: "Transformation", Value: string(transformation), Options: transforms},
	}
}

func (h *TextHandler) Value(_ context.Context, m *Mapping, rec *email.Record) (notion.PropertyValue, error) {
	if !m.EmailField.IsKnown() {
		return nil, fmt.Errorf("unknown email field %q", m.EmailField)
	}
	raw := rec.Value(m.EmailField)

	if m.Kind == notion.KindDate && h.strictDates {
		if _, err := h.engine.ParseDate(raw); err != nil {
			return nil, fmt.Errorf("invalid date in %s: %w", m.EmailField, err)
		}
	}

	value := h.engine.Apply(raw, m.Transformation)
	return notion.Format(value, m.Kind), nil
}

func knownTransformation(id transform.ID) bool {
	for _, o := range transform.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}
