package model

import (
	"time"

	"gmail-notion-relay/internal/email"
	"gmail-notion-relay/internal/notion"
	"gmail-notion-relay/internal/transform"
)

// PageRef is a related page picked for a relation mapping.
type PageRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PropertyMapping links one database property to an email field or a fixed
// value. Exactly one strategy applies, chosen by Kind.
type PropertyMapping struct {
	ID                 uint         `json:"id" gorm:"primaryKey;autoIncrement"`
	DatabaseID         string       `json:"database_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_mapping_property"`
	PropertyID         string       `json:"property_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_mapping_property"`
	NotionPropertyName string       `json:"notion_property_name" gorm:"type:varchar(255)"`
	Kind               notion.Kind  `json:"kind" gorm:"type:varchar(50);not null"`
	Enabled            bool         `json:"enabled" gorm:"default:false"`
	IsTitle            bool         `json:"is_title"`
	EmailField         email.Field  `json:"email_field,omitempty" gorm:"type:varchar(50)"`
	Transformation     transform.ID `json:"transformation,omitempty" gorm:"type:varchar(50)"`
	SelectedOption     string       `json:"selected_option,omitempty" gorm:"type:varchar(255)"`
	SelectedOptions    []string     `json:"selected_options,omitempty" gorm:"serializer:json;type:text"`
	CheckboxValue      bool         `json:"checkbox_value"`
	SelectedUsers      []string     `json:"selected_users,omitempty" gorm:"serializer:json;type:text"`
	SelectedPages      []PageRef    `json:"selected_pages,omitempty" gorm:"serializer:json;type:text"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// TableName specifies the table name for PropertyMapping
func (PropertyMapping) TableName() string {
	return "property_mappings"
}

// Label names the mapping in error reports.
func (m *PropertyMapping) Label() string {
	if m.NotionPropertyName != "" {
		return m.NotionPropertyName
	}
	if m.PropertyID != "" {
		return m.PropertyID
	}
	return "mapping"
}
