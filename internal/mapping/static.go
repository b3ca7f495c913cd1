package mapping

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
)

// StaticHandler writes a value chosen at configuration time into select,
// status, multi_select and checkbox properties. The email is not consulted.
type StaticHandler struct{}

func (StaticHandler) Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error) {
	m := baseMapping(desc, form)

	switch desc.Kind {
	case notion.KindCheckbox:
		m.CheckboxValue = formBool(form, FormCheckboxValue)
	case notion.KindMultiSelect:
		for _, name := range formList(form, FormSelectedOptions) {
			if !hasOption(desc, name) {
				return Mapping{}, fmt.Errorf("unknown option %q for %s", name, desc.Name)
			}
			if !contains(m.SelectedOptions, name) {
				m.SelectedOptions = append(m.SelectedOptions, name)
			}
		}
		if m.Enabled && len(m.SelectedOptions) == 0 {
			return Mapping{}, fmt.Errorf("select at least one option for %s", desc.Name)
		}
	default:
		name := strings.TrimSpace(form.Get(FormSelectedOption))
		if name != "" && !hasOption(desc, name) {
			return Mapping{}, fmt.Errorf("unknown option %q for %s", name, desc.Name)
		}
		if m.Enabled && name == "" {
			return Mapping{}, fmt.Errorf("select an option for %s", desc.Name)
		}
		m.SelectedOption = name
	}
	return m, nil
}

func (StaticHandler) Widgets(_ context.Context, _ string, desc notion.PropertyDescriptor, m *Mapping) []Widget {
	widgets := []Widget{enabledWidget(m, false)}

	if desc.Kind == notion.KindCheckbox {
		return append(widgets, Widget{
			Type:  WidgetCheckbox,
			Name:  FormCheckboxValue,
			Label: "Checked",
			Value: m != nil && m.CheckboxValue,
		})
	}

	var selected []string
	if m != nil {
		selected = m.SelectedOptions
		if m.SelectedOption != "" {
			selected = []string{m.SelectedOption}
		}
	}
	options := make([]WidgetOption, 0, len(desc.Options))
	for _, o := range desc.Options {
		options = append(options, WidgetOption{Value: o.Name, Label: o.Name, Selected: contains(selected, o.Name)})
	}

	if desc.Kind == notion.KindMultiSelect {
		return append(widgets, Widget{Type: WidgetMultiSelect, Name: FormSelectedOptions, Label: "Options", Value: selected, Options: options})
	}
	return append(widgets, Widget{Type: WidgetSelect, Name: FormSelectedOption, Label: "Option", Options: options})
}

func (StaticHandler) Value(_ context.Context, m *Mapping, _ *email.Record) (notion.PropertyValue, error) {
	switch m.Kind {
	case notion.KindCheckbox:
		return notion.Format(m.CheckboxValue, notion.KindCheckbox), nil
	case notion.KindMultiSelect:
		return notion.Format(m.SelectedOptions, notion.KindMultiSelect), nil
	case notion.KindSelect, notion.KindStatus:
		return notion.Format(m.SelectedOption, m.Kind), nil
	}
	return nil, fmt.Errorf("static handler cannot map %s properties", m.Kind)
}

// hasOption accepts any name when Notion reported no options.
func hasOption(desc notion.PropertyDescriptor, name string) bool {
	if len(desc.Options) == 0 {
		return true
	}
	for _, o := range desc.Options {
		if o.Name == name {
			return true
		}
	}
	return false
}
