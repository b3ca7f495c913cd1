package model

import (
	"time"

	"gorm.io/gorm"
)

// Save log statuses.
const (
	SaveStatusSuccess  = "success"
	SaveStatusFailure  = "failure"
	SaveStatusRejected = "rejected"
)

// SaveLog records one attempt to save an email as a page
type SaveLog struct {
	ID          uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	MessageID   string         `json:"message_id" gorm:"type:varchar(255);not null;index"`
	DatabaseID  string         `json:"database_id" gorm:"type:varchar(64);index"`
	PageID      string         `json:"page_id" gorm:"type:varchar(64)"`
	PageURL     string         `json:"page_url" gorm:"type:varchar(512)"`
	Status      string         `json:"status" gorm:"type:varchar(50);not null"`
	MappedCount int            `json:"mapped_count"`
	ErrorCount  int            `json:"error_count"`
	ErrorMsg    string         `json:"error_msg" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for SaveLog
func (SaveLog) TableName() string {
	return "save_logs"
}
