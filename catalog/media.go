package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jon4hz/photomirror/catalog/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MediaItemSearch holds the filters for searching media items. Zero values
// mean "no filter"; Limit defaults to 100.
type MediaItemSearch struct {
	Limit     int
	Offset    int
	CName     string
	Path      string
	Status    []models.MediaItemStatus
	StatusNot []models.MediaItemStatus
}

// GetMediaItemByRemoteID returns the media item with the given remote ID, or
// nil if no such row exists. Absence is not an error: callers interpret it as
// "needs indexing".
func (c *Catalog) GetMediaItemByRemoteID(ctx context.Context, remoteID string) (*models.MediaItem, error) {
	var item models.MediaItem
	err := c.db.WithContext(ctx).Where("remote_id = ?", remoteID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media item: %w", err)
	}
	return &item, nil
}

// GetMediaItem returns the media item with the given primary key, or nil if
// no such row exists.
func (c *Catalog) GetMediaItem(ctx context.Context, id uint) (*models.MediaItem, error) {
	var item models.MediaItem
	err := c.db.WithContext(ctx).First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media item: %w", err)
	}
	return &item, nil
}

// SearchMediaItems returns media items matching the given filters, ordered by
// primary key ascending.
func (c *Catalog) SearchMediaItems(ctx context.Context, search MediaItemSearch) ([]models.MediaItem, error) {
	if search.Limit <= 0 {
		search.Limit = 100
	}

	tx := c.db.WithContext(ctx).Model(&models.MediaItem{})
	if search.CName != "" {
		tx = tx.Where("c_name = ?", search.CName)
	}
	if search.Path != "" {
		tx = tx.Where("path = ?", search.Path)
	}
	if len(search.Status) > 0 {
		tx = tx.Where("status IN ?", search.Status)
	}
	if len(search.StatusNot) > 0 {
		tx = tx.Where("status NOT IN ?", search.StatusNot)
	}

	var items []models.MediaItem
	if err := tx.Order("id ASC").Limit(search.Limit).Offset(search.Offset).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to search media items: %w", err)
	}
	return items, nil
}

// CountMediaItems returns the number of media items with one of the given
// statuses, or all items if no status is given.
func (c *Catalog) CountMediaItems(ctx context.Context, statuses ...models.MediaItemStatus) (int64, error) {
	tx := c.db.WithContext(ctx).Model(&models.MediaItem{})
	if len(statuses) > 0 {
		tx = tx.Where("status IN ?", statuses)
	}
	var cnt int64
	if err := tx.Count(&cnt).Error; err != nil {
		return 0, fmt.Errorf("failed to count media items: %w", err)
	}
	return cnt, nil
}

// MediaItemStats returns the number of media items per status.
func (c *Catalog) MediaItemStats(ctx context.Context) (map[models.MediaItemStatus]int64, error) {
	var rows []struct {
		Status models.MediaItemStatus
		Cnt    int64
	}
	err := c.db.WithContext(ctx).Model(&models.MediaItem{}).
		Select("status, COUNT(*) AS cnt").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get media item stats: %w", err)
	}

	stats := make(map[models.MediaItemStatus]int64, len(rows))
	for _, r := range rows {
		stats[r.Status] = r.Cnt
	}
	return stats, nil
}

// UpsertMediaItem inserts the media item or, if a row with the same remote ID
// already exists, refreshes its index date, last checked date and status.
// Repeated runs over the same remote state never create duplicate rows.
func (c *Catalog) UpsertMediaItem(ctx context.Context, item *models.MediaItem) error {
	if !item.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, item.Status)
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"index_date", "last_checked", "status"}),
	}).Create(item).Error
	if err != nil {
		return fmt.Errorf("failed to upsert media item: %w", err)
	}
	return nil
}

// TouchMediaItem bumps the last checked timestamp of a media item without
// changing anything else.
func (c *Catalog) TouchMediaItem(ctx context.Context, id uint, lastChecked time.Time) error {
	err := c.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("id = ?", id).
		Update("last_checked", lastChecked).Error
	if err != nil {
		return fmt.Errorf("failed to touch media item: %w", err)
	}
	return nil
}

// SetMediaItemStatus updates the status of a single media item.
func (c *Catalog) SetMediaItemStatus(ctx context.Context, id uint, status models.MediaItemStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	err := c.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to set media item status: %w", err)
	}
	return nil
}

// MarkMediaItemsStale marks every media item whose last checked timestamp
// predates the given cutoff as stale and returns the number of rows changed.
// This is the staleness primitive: items not refreshed by a completed full
// listing pass are exactly the items the remote no longer has.
func (c *Catalog) MarkMediaItemsStale(ctx context.Context, lastCheckedBefore time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("last_checked < ?", lastCheckedBefore).
		Update("status", models.MediaItemStatusStale)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark media items stale: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ResetIgnoredMediaItems reverts all ignored media items back to pending sync
// and returns the number of rows changed.
func (c *Catalog) ResetIgnoredMediaItems(ctx context.Context) (int64, error) {
	res := c.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("status = ?", models.MediaItemStatusIgnored).
		Update("status", models.MediaItemStatusPendingSync)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to reset ignored media items: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteMediaItem removes a media item row.
func (c *Catalog) DeleteMediaItem(ctx context.Context, id uint) error {
	if err := c.db.WithContext(ctx).Delete(&models.MediaItem{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete media item: %w", err)
	}
	return nil
}
