package model

import "time"

// SettingsID is the primary key of the only settings row.
const SettingsID = 1

// Settings holds the user's Notion connection
type Settings struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	NotionAPIKey string    `json:"-" gorm:"type:varchar(255)"`
	DatabaseID   string    `json:"database_id" gorm:"type:varchar(64)"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for Settings
func (Settings) TableName() string {
	return "settings"
}

// Complete reports whether both the key and the database are set.
func (s *Settings) Complete() bool {
	return s != nil && s.NotionAPIKey != "" && s.DatabaseID != ""
}
