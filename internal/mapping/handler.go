// Package mapping turns an email record into Notion page properties according
// to the user's per-property mappings.
package mapping

import (
	"context"
	"net/url"
	"strings"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/model"
	"gmail-notion-relay/internal/notion"
)

// Mapping is the persisted configuration of one property.
type Mapping = model.PropertyMapping

// Handler implements one family of property kinds.
//
// Configure builds a mapping from submitted form values. Widgets describes the
// form for a property, pre-filled from m when it is not nil. Value produces
// the property's wire value for rec; a nil value with a nil error means the
// property is omitted.
type Handler interface {
	Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error)
	Widgets(ctx context.Context, apiKey string, desc notion.PropertyDescriptor, m *Mapping) []Widget
	Value(ctx context.Context, m *Mapping, rec *email.Record) (notion.PropertyValue, error)
}

// UserDirectory lists workspace users for people properties.
type UserDirectory interface {
	ListUsers(ctx context.Context, apiKey string) ([]notion.User, error)
}

// PageLister lists pages of a related database for relation properties.
type PageLister interface {
	QueryDatabase(ctx context.Context, apiKey, databaseID string, q notion.Query) ([]notion.Page, error)
}

// Widget types.
const (
	WidgetToggle      = "toggle"
	WidgetSelect      = "select"
	WidgetMultiSelect = "multi_select"
	WidgetCheckbox    = "checkbox"
	WidgetInfo        = "info"
)

// Widget is one input of a property's configuration form.
type Widget struct {
	Type     string         `json:"type"`
	Name     string         `json:"name,omitempty"`
	Label    string         `json:"label"`
	Value    any            `json:"value,omitempty"`
	Options  []WidgetOption `json:"options,omitempty"`
	Disabled bool           `json:"disabled,omitempty"`
}

// WidgetOption is one choice of a select widget.
type WidgetOption struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

// Form field names shared by every handler.
const (
	FormEnabled         = "enabled"
	FormEmailField      = "email_field"
	FormTransformation  = "transformation"
	FormSelectedOption  = "selected_option"
	FormSelectedOptions = "selected_options"
	FormCheckboxValue   = "checkbox_value"
	FormSelectedUsers   = "selected_users"
	FormSelectedPages   = "selected_pages"
)

func baseMapping(desc notion.PropertyDescriptor, form url.Values) Mapping {
	return Mapping{
		PropertyID:         desc.ID,
		NotionPropertyName: desc.Name,
		Kind:               desc.Kind,
		IsTitle:            desc.IsTitle,
		Enabled:            formBool(form, FormEnabled),
	}
}

func enabledWidget(m *Mapping, disabled bool) Widget {
	return Widget{
		Type:     WidgetToggle,
		Name:     FormEnabled,
		Label:    "Enabled",
		Value:    m != nil && m.Enabled,
		Disabled: disabled,
	}
}

func formBool(form url.Values, key string) bool {
	switch strings.ToLower(strings.TrimSpace(form.Get(key))) {
	case "true", "on", "1", "yes":
		return true
	}
	return false
}

// formList accepts repeated keys and comma-separated values.
func formList(form url.Values, key string) []string {
	var out []string
	for _, v := range form[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
