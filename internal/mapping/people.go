package mapping

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
)

// PeopleHandler assigns workspace users chosen at configuration time.
type PeopleHandler struct {
	users UserDirectory
}

// NewPeopleHandler creates a people handler backed by users.
func NewPeopleHandler(users UserDirectory) *PeopleHandler {
	return &PeopleHandler{users: users}
}

func (h *PeopleHandler) Configure(desc notion.PropertyDescriptor, form url.Values) (Mapping, error) {
	m := baseMapping(desc, form)
	for _, id := range formList(form, FormSelectedUsers) {
		if !contains(m.SelectedUsers, id) {
			m.SelectedUsers = append(m.SelectedUsers, id)
		}
	}
	if m.Enabled && len(m.SelectedUsers) == 0 {
		return Mapping{}, fmt.Errorf("select at least one user for %s", desc.Name)
	}
	return m, nil
}

func (h *PeopleHandler) Widgets(ctx context.Context, apiKey string, desc notion.PropertyDescriptor, m *Mapping) []Widget {
	widgets := []Widget{enabledWidget(m, false)}
	if h.users == nil {
		return append(widgets, Widget{Type: WidgetInfo, Label: "Workspace users are unavailable"})
	}

	users, err := h.users.ListUsers(ctx, apiKey)
	if err != nil {
		logrus.Warnf("Failed to list users for %s: %v", desc.Name, err)
		return append(widgets, Widget{Type: WidgetInfo, Label: "Could not load workspace users"})
	}

	var selected []string
	if m != nil {
		selected = m.SelectedUsers
	}
	options := make([]WidgetOption, 0, len(users))
	for _, u := range users {
		label := u.Name
		if u.Email != "" {
			label = fmt.Sprintf("%s (%s)", u.Name, u.Email)
		}
		options = append(options, WidgetOption{Value: u.ID, Label: label, Selected: contains(selected, u.ID)})
	}
	return append(widgets, Widget{Type: WidgetMultiSelect, Name: FormSelectedUsers, Label: "Users", Value: selected, Options: options})
}

func (h *PeopleHandler) Value(_ context.Context, m *Mapping, _ *email.Record) (notion.PropertyValue, error) {
	refs := notion.References(m.SelectedUsers)
	if len(refs) == 0 {
		return nil, nil
	}
	return notion.PropertyValue{"people": refs}, nil
}
