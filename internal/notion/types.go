// Package notion talks to the Notion API and shapes email values into its
// page-properties wire format.
package notion

import (
	"sort"
	"strings"
)

// Kind is the type of a database property.
type Kind string

const (
	KindTitle          Kind = "title"
	KindRichText       Kind = "rich_text"
	KindURL            Kind = "url"
	KindEmail          Kind = "email"
	KindNumber         Kind = "number"
	KindPhoneNumber    Kind = "phone_number"
	KindDate           Kind = "date"
	KindSelect         Kind = "select"
	KindStatus         Kind = "status"
	KindCheckbox       Kind = "checkbox"
	KindMultiSelect    Kind = "multi_select"
	KindPeople         Kind = "people"
	KindRelation       Kind = "relation"
	KindFiles          Kind = "files"
	KindCreatedTime    Kind = "created_time"
	KindCreatedBy      Kind = "created_by"
	KindLastEditedTime Kind = "last_edited_time"
	KindLastEditedBy   Kind = "last_edited_by"
	KindFormula        Kind = "formula"
	KindRollup         Kind = "rollup"
)

// Kinds lists every property kind Notion can report.
var Kinds = []Kind{
	KindTitle, KindRichText, KindURL, KindEmail, KindNumber, KindPhoneNumber, KindDate,
	KindSelect, KindStatus, KindCheckbox, KindMultiSelect,
	KindPeople, KindRelation, KindFiles,
	KindCreatedTime, KindCreatedBy, KindLastEditedTime, KindLastEditedBy, KindFormula, KindRollup,
}

// IsAutoManaged reports kinds Notion fills in itself.
func (k Kind) IsAutoManaged() bool {
	switch k {
	case KindCreatedTime, KindCreatedBy, KindLastEditedTime, KindLastEditedBy, KindFormula, KindRollup:
		return true
	}
	return false
}

// SelectOption is one choice of a select, status or multi_select property.
type SelectOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// PropertyDescriptor describes one column of a database.
type PropertyDescriptor struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       Kind           `json:"kind"`
	IsRequired bool           `json:"is_required"`
	IsTitle    bool           `json:"is_title"`
	Options    []SelectOption `json:"options,omitempty"`
	// RelationConfig is the raw relation block as returned by Notion. Its shape
	// differs between single and dual relations and between API versions.
	RelationConfig map[string]any `json:"relation_config,omitempty"`
}

// Database is a database schema with its properties in a stable order.
type Database struct {
	ID         string               `json:"id"`
	Title      string               `json:"title"`
	URL        string               `json:"url"`
	Properties []PropertyDescriptor `json:"properties"`
}

// URLProperties returns the url-kind properties in schema order.
func (d *Database) URLProperties() []PropertyDescriptor {
	var out []PropertyDescriptor
	for _, p := range d.Properties {
		if p.Kind == KindURL {
			out = append(out, p)
		}
	}
	return out
}

// Property looks a property up by id, falling back to its name.
func (d *Database) Property(idOrName string) (PropertyDescriptor, bool) {
	for _, p := range d.Properties {
		if p.ID == idOrName {
			return p, true
		}
	}
	for _, p := range d.Properties {
		if p.Name == idOrName {
			return p, true
		}
	}
	return PropertyDescriptor{}, false
}

// sortProperties orders the title column first, then by name.
func sortProperties(props []PropertyDescriptor) {
	sort.SliceStable(props, func(i, j int) bool {
		if props[i].IsTitle != props[j].IsTitle {
			return props[i].IsTitle
		}
		return strings.ToLower(props[i].Name) < strings.ToLower(props[j].Name)
	})
}

// Page is a row of a database as returned by query and create calls.
type Page struct {
	ID          string                    `json:"id"`
	URL         string                    `json:"url"`
	CreatedTime string                    `json:"created_time"`
	Properties  map[string]map[string]any `json:"properties,omitempty"`
}

// Title joins the plain text of the page's title property.
func (p *Page) Title() string {
	for _, prop := range p.Properties {
		if prop["type"] != string(KindTitle) {
			continue
		}
		runs, _ := prop["title"].([]any)
		var b strings.Builder
		for _, r := range runs {
			run, ok := r.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := run["plain_text"].(string); ok {
				b.WriteString(text)
			} else if content, ok := run["text"].(map[string]any); ok {
				s, _ := content["content"].(string)
				b.WriteString(s)
			}
		}
		return b.String()
	}
	return ""
}

// URLValue returns the value of the named url property, or "".
func (p *Page) URLValue(property string) string {
	prop, ok := p.Properties[property]
	if !ok {
		return ""
	}
	s, _ := prop["url"].(string)
	return s
}

// User is a workspace member that can be assigned to a people property.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Type  string `json:"type"`
}

// PropertyValue is one entry of a page's properties payload, keyed by its
// kind, e.g. {"url": "https://..."}.
type PropertyValue map[string]any

// TextRun is a rich text segment.
type TextRun struct {
	Type string      `json:"type"`
	Text TextContent `json:"text"`
}

// TextContent is the body of a text run.
type TextContent struct {
	Content string `json:"content"`
}

// NamedOption references a select, status or multi_select choice by name.
type NamedOption struct {
	Name string `json:"name"`
}

// Reference points at a user or page by id.
type Reference struct {
	ID string `json:"id"`
}

// DateValue is the body of a date property.
type DateValue struct {
	Start string `json:"start"`
}

// Text builds a single text run.
func Text(content string) TextRun {
	return TextRun{Type: "text", Text: TextContent{Content: content}}
}

// References builds a reference list from ids, skipping blanks.
func References(ids []string) []Reference {
	refs := make([]Reference, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			refs = append(refs, Reference{ID: id})
		}
	}
	return refs
}
