package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jon4hz/photomirror/catalog/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetSetting returns the value for the given key, or an empty string if the
// key does not exist.
func (c *Catalog) GetSetting(ctx context.Context, key string) (string, error) {
	var setting models.Setting
	err := c.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %q: %w", key, err)
	}
	return setting.Value, nil
}

// SetSetting writes the value for the given key with upsert semantics.
func (c *Catalog) SetSetting(ctx context.Context, key, value string) error {
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.Setting{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("failed to set setting %q: %w", key, err)
	}
	return nil
}
