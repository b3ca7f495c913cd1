package mapping

import (
	"fmt"
	"strings"

	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/transform"
)

// Family groups property kinds served by the same handler.
type Family string

const (
	FamilyText     Family = "text"
	FamilyStatic   Family = "static"
	FamilyPeople   Family = "people"
	FamilyRelation Family = "relation"
	FamilyFiles    Family = "files"
	FamilyAuto     Family = "auto"
)

// FamilyOf returns the family serving kind. ok is false for kinds Notion may
// add later; those fall back to the text family.
func FamilyOf(kind notion.Kind) (family Family, ok bool) {
	switch kind {
	case notion.KindTitle, notion.KindRichText, notion.KindEmail, notion.KindURL,
		notion.KindNumber, notion.KindPhoneNumber, notion.KindDate:
		return FamilyText, true
	case notion.KindSelect, notion.KindStatus, notion.KindCheckbox, notion.KindMultiSelect:
		return FamilyStatic, true
	case notion.KindPeople:
		return FamilyPeople, true
	case notion.KindRelation:
		return FamilyRelation, true
	case notion.KindFiles:
		return FamilyFiles, true
	case notion.KindCreatedTime, notion.KindCreatedBy, notion.KindLastEditedTime,
		notion.KindLastEditedBy, notion.KindFormula, notion.KindRollup:
		return FamilyAuto, true
	}
	return FamilyText, false
}

// Registry resolves the handler for a property kind.
type Registry struct {
	handlers map[Family]Handler
}

// RegistryOptions configures NewRegistry.
type RegistryOptions struct {
	Engine      *transform.Engine
	StrictDates bool
	Users       UserDirectory
	Pages       PageLister
}

// NewRegistry builds a registry with a handler for every family.
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{handlers: map[Family]Handler{
		FamilyText:     NewTextHandler(opts.Engine, opts.StrictDates),
		FamilyStatic:   StaticHandler{},
		FamilyPeople:   NewPeopleHandler(opts.Users),
		FamilyRelation: NewRelationHandler(opts.Pages),
		FamilyFiles:    FilesHandler{},
		FamilyAuto:     AutoHandler{},
	}}
}

// HandlerFor returns the handler for kind, defaulting to the text handler.
func (r *Registry) HandlerFor(kind notion.Kind) Handler {
	family, _ := FamilyOf(kind)
	return r.handlers[family]
}

// CheckEnable reports why a stored mapping cannot be switched on. Configure
// only checks selections of enabled mappings; this repeats those checks.
func CheckEnable(m *Mapping) error {
	family, _ := FamilyOf(m.Kind)
	switch family {
	case FamilyAuto:
		return fmt.Errorf("%s properties are managed by Notion", m.Kind)
	case FamilyText:
		if !m.EmailField.IsKnown() {
			return fmt.Errorf("choose an email field for %s", m.NotionPropertyName)
		}
	case FamilyStatic:
		switch m.Kind {
		case notion.KindCheckbox:
		case notion.KindMultiSelect:
			if len(m.SelectedOptions) == 0 {
				return fmt.Errorf("select at least one option for %s", m.NotionPropertyName)
			}
		default:
			if strings.TrimSpace(m.SelectedOption) == "" {
				return fmt.Errorf("select an option for %s", m.NotionPropertyName)
			}
		}
	case FamilyPeople:
		if len(m.SelectedUsers) == 0 {
			return fmt.Errorf("select at least one user for %s", m.NotionPropertyName)
		}
	case FamilyRelation:
		if len(m.SelectedPages) == 0 {
			return fmt.Errorf("select at least one page for %s", m.NotionPropertyName)
		}
	}
	return nil
}
