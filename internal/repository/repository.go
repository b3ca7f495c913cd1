package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gmail-notion-relay/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListMappings returns every mapping of a database, title property first.
func (r *Repository) ListMappings(databaseID string) ([]model.PropertyMapping, error) {
	var mappings []model.PropertyMapping
	result := r.db.Where("database_id = ?", databaseID).
		Order("is_title DESC").Order("notion_property_name ASC").
		Find(&mappings)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get mappings: %w", result.Error)
	}
	return mappings, nil
}

// ListEnabledMappings returns the mappings applied when saving to a database.
func (r *Repository) ListEnabledMappings(databaseID string) ([]model.PropertyMapping, error) {
	var mappings []model.PropertyMapping
	result := r.db.Where("database_id = ? AND enabled = ?", databaseID, true).
		Order("is_title DESC").Order("notion_property_name ASC").
		Find(&mappings)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get enabled mappings: %w", result.Error)
	}
	return mappings, nil
}

// GetMapping returns the mapping of one property.
func (r *Repository) GetMapping(databaseID, propertyID string) (*model.PropertyMapping, error) {
	var mapping model.PropertyMapping
	result := r.db.Where("database_id = ? AND property_id = ?", databaseID, propertyID).First(&mapping)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return &mapping, nil
}

// UpsertMapping stores m, replacing any mapping of the same property.
func (r *Repository) UpsertMapping(m *model.PropertyMapping) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing model.PropertyMapping
		result := tx.Where("database_id = ? AND property_id = ?", m.DatabaseID, m.PropertyID).First(&existing)
		switch {
		case result.Error == nil:
			m.ID = existing.ID
			m.CreatedAt = existing.CreatedAt
		case errors.Is(result.Error, gorm.ErrRecordNotFound):
			m.ID = 0
		default:
			return fmt.Errorf("database error: %w", result.Error)
		}

		if err := tx.Save(m).Error; err != nil {
			return fmt.Errorf("failed to save mapping: %w", err)
		}
		return nil
	})
}

// SetMappingEnabled toggles a mapping without touching its configuration.
func (r *Repository) SetMappingEnabled(databaseID, propertyID string, enabled bool) error {
	result := r.db.Model(&model.PropertyMapping{}).
		Where("database_id = ? AND property_id = ?", databaseID, propertyID).
		Update("enabled", enabled)
	if result.Error != nil {
		return fmt.Errorf("failed to update mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMapping removes the mapping of one property.
func (r *Repository) DeleteMapping(databaseID, propertyID string) error {
	result := r.db.Where("database_id = ? AND property_id = ?", databaseID, propertyID).Delete(&model.PropertyMapping{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete mapping: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountEnabledMappings counts enabled mappings across all databases.
func (r *Repository) CountEnabledMappings() (int64, error) {
	var count int64
	if err := r.db.Model(&model.PropertyMapping{}).Where("enabled = ?", true).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count mappings: %w", err)
	}
	return count, nil
}

// GetSettings returns the stored settings, or empty settings when none were
// saved yet.
func (r *Repository) GetSettings() (*model.Settings, error) {
	var settings model.Settings
	result := r.db.First(&settings, model.SettingsID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return &model.Settings{ID: model.SettingsID}, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get settings: %w", result.Error)
	}
	return &settings, nil
}

// SaveSettings replaces the stored settings.
func (r *Repository) SaveSettings(s *model.Settings) error {
	s.ID = model.SettingsID
	if err := r.db.Save(s).Error; err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// LogSave records a save attempt.
func (r *Repository) LogSave(entry *model.SaveLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to log save attempt: %w", err)
	}
	return nil
}

// ListSaveLogs returns one page of save logs, newest first, and the total count.
func (r *Repository) ListSaveLogs(page, limit int) ([]model.SaveLog, int64, error) {
	var total int64
	if err := r.db.Model(&model.SaveLog{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}

	var logs []model.SaveLog
	offset := (page - 1) * limit
	if err := r.db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get logs: %w", err)
	}
	return logs, total, nil
}

// GetSaveLog returns a single save log.
func (r *Repository) GetSaveLog(id uint) (*model.SaveLog, error) {
	var entry model.SaveLog
	result := r.db.First(&entry, id)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	}
	return &entry, nil
}
