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

// AlbumSearch holds the filters for searching albums.
type AlbumSearch struct {
	Limit     int
	Offset    int
	CName     string
	Path      string
	Status    []models.AlbumStatus
	StatusNot []models.AlbumStatus
}

// AlbumItemSearch holds the filters for searching album memberships.
type AlbumItemSearch struct {
	Limit      int
	Offset     int
	AlbumID    uint
	AlbumCName string
	ItemCName  string
	Status     []models.AlbumItemStatus
	StatusNot  []models.AlbumItemStatus
}

// AlbumItemDetail is a membership row joined with the fields of its album and
// media item that the sync and deletion passes need.
type AlbumItemDetail struct {
	ID          uint
	AlbumID     uint
	MediaItemID uint
	Status      models.AlbumItemStatus

	AlbumName  string
	AlbumCName string
	AlbumPath  string

	ItemName   string
	ItemCName  string
	ItemPath   string
	ItemStatus models.MediaItemStatus
}

// GetAlbumByRemoteID returns the album with the given remote ID, or nil if no
// such row exists.
func (c *Catalog) GetAlbumByRemoteID(ctx context.Context, remoteID string) (*models.Album, error) {
	var album models.Album
	err := c.db.WithContext(ctx).Where("remote_id = ?", remoteID).First(&album).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &album, nil
}

// GetAlbum returns the album with the given primary key, or nil if no such
// row exists.
func (c *Catalog) GetAlbum(ctx context.Context, id uint) (*models.Album, error) {
	var album models.Album
	err := c.db.WithContext(ctx).First(&album, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get album: %w", err)
	}
	return &album, nil
}

// SearchAlbums returns albums matching the given filters, ordered by primary
// key ascending.
func (c *Catalog) SearchAlbums(ctx context.Context, search AlbumSearch) ([]models.Album, error) {
	if search.Limit <= 0 {
		search.Limit = 100
	}

	tx := c.db.WithContext(ctx).Model(&models.Album{})
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

	var albums []models.Album
	if err := tx.Order("id ASC").Limit(search.Limit).Offset(search.Offset).Find(&albums).Error; err != nil {
		return nil, fmt.Errorf("failed to search albums: %w", err)
	}
	return albums, nil
}

// CountAlbums returns the number of albums with one of the given statuses, or
// all albums if no status is given.
func (c *Catalog) CountAlbums(ctx context.Context, statuses ...models.AlbumStatus) (int64, error) {
	tx := c.db.WithContext(ctx).Model(&models.Album{})
	if len(statuses) > 0 {
		tx = tx.Where("status IN ?", statuses)
	}
	var cnt int64
	if err := tx.Count(&cnt).Error; err != nil {
		return 0, fmt.Errorf("failed to count albums: %w", err)
	}
	return cnt, nil
}

// AlbumStats returns the number of albums per status.
func (c *Catalog) AlbumStats(ctx context.Context) (map[models.AlbumStatus]int64, error) {
	var rows []struct {
		Status models.AlbumStatus
		Cnt    int64
	}
	err := c.db.WithContext(ctx).Model(&models.Album{}).
		Select("status, COUNT(*) AS cnt").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get album stats: %w", err)
	}

	stats := make(map[models.AlbumStatus]int64, len(rows))
	for _, r := range rows {
		stats[r.Status] = r.Cnt
	}
	return stats, nil
}

// UpsertAlbum inserts the album or, if a row with the same remote ID already
// exists, refreshes its remote metadata, index date, last checked date and
// status.
func (c *Catalog) UpsertAlbum(ctx context.Context, album *models.Album) error {
	if !album.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, album.Status)
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "c_name", "path", "size", "cover_photo_id", "index_date", "last_checked", "status"}),
	}).Create(album).Error
	if err != nil {
		return fmt.Errorf("failed to upsert album: %w", err)
	}
	return nil
}

// TouchAlbum bumps the last checked timestamp of an album.
func (c *Catalog) TouchAlbum(ctx context.Context, id uint, lastChecked time.Time) error {
	err := c.db.WithContext(ctx).Model(&models.Album{}).
		Where("id = ?", id).
		Update("last_checked", lastChecked).Error
	if err != nil {
		return fmt.Errorf("failed to touch album: %w", err)
	}
	return nil
}

// SetAlbumStatus updates the status of a single album.
func (c *Catalog) SetAlbumStatus(ctx context.Context, id uint, status models.AlbumStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	err := c.db.WithContext(ctx).Model(&models.Album{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to set album status: %w", err)
	}
	return nil
}

// MarkAlbumsStale marks every album whose last checked timestamp predates the
// given cutoff as stale and returns the number of rows changed.
func (c *Catalog) MarkAlbumsStale(ctx context.Context, lastCheckedBefore time.Time) (int64, error) {
	res := c.db.WithContext(ctx).Model(&models.Album{}).
		Where("last_checked < ?", lastCheckedBefore).
		Update("status", models.AlbumStatusStale)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark albums stale: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAlbum removes an album row.
func (c *Catalog) DeleteAlbum(ctx context.Context, id uint) error {
	if err := c.db.WithContext(ctx).Delete(&models.Album{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	return nil
}

// UpsertAlbumItem inserts the membership or, if a row for the same album and
// media item already exists, refreshes its status.
func (c *Catalog) UpsertAlbumItem(ctx context.Context, item *models.AlbumItem) error {
	if !item.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, item.Status)
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "album_id"}, {Name: "media_item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(item).Error
	if err != nil {
		return fmt.Errorf("failed to upsert album item: %w", err)
	}
	return nil
}

// SearchAlbumItems returns membership rows joined with their album and media
// item fields, matching the given filters, ordered by primary key ascending.
func (c *Catalog) SearchAlbumItems(ctx context.Context, search AlbumItemSearch) ([]AlbumItemDetail, error) {
	if search.Limit <= 0 {
		search.Limit = 100
	}

	tx := c.db.WithContext(ctx).Model(&models.AlbumItem{}).
		Select(`album_items.id, album_items.album_id, album_items.media_item_id, album_items.status,
			albums.name AS album_name, albums.c_name AS album_c_name, albums.path AS album_path,
			media_items.name AS item_name, media_items.c_name AS item_c_name,
			media_items.path AS item_path, media_items.status AS item_status`).
		Joins("JOIN albums ON albums.id = album_items.album_id").
		Joins("JOIN media_items ON media_items.id = album_items.media_item_id")

	if search.AlbumID != 0 {
		tx = tx.Where("album_items.album_id = ?", search.AlbumID)
	}
	if search.AlbumCName != "" {
		tx = tx.Where("albums.c_name = ?", search.AlbumCName)
	}
	if search.ItemCName != "" {
		tx = tx.Where("media_items.c_name = ?", search.ItemCName)
	}
	if len(search.Status) > 0 {
		tx = tx.Where("album_items.status IN ?", search.Status)
	}
	if len(search.StatusNot) > 0 {
		tx = tx.Where("album_items.status NOT IN ?", search.StatusNot)
	}

	var items []AlbumItemDetail
	if err := tx.Order("album_items.id ASC").Limit(search.Limit).Offset(search.Offset).Scan(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to search album items: %w", err)
	}
	return items, nil
}

// CountAlbumItems returns the number of membership rows matching the given
// album and status filters.
func (c *Catalog) CountAlbumItems(ctx context.Context, search AlbumItemSearch) (int64, error) {
	tx := c.db.WithContext(ctx).Model(&models.AlbumItem{})
	if search.AlbumID != 0 {
		tx = tx.Where("album_id = ?", search.AlbumID)
	}
	if len(search.Status) > 0 {
		tx = tx.Where("status IN ?", search.Status)
	}
	if len(search.StatusNot) > 0 {
		tx = tx.Where("status NOT IN ?", search.StatusNot)
	}
	var cnt int64
	if err := tx.Count(&cnt).Error; err != nil {
		return 0, fmt.Errorf("failed to count album items: %w", err)
	}
	return cnt, nil
}

// AlbumItemStats returns the number of membership rows per status.
func (c *Catalog) AlbumItemStats(ctx context.Context) (map[models.AlbumItemStatus]int64, error) {
	var rows []struct {
		Status models.AlbumItemStatus
		Cnt    int64
	}
	err := c.db.WithContext(ctx).Model(&models.AlbumItem{}).
		Select("status, COUNT(*) AS cnt").
		Group("status").
		Order("status ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get album item stats: %w", err)
	}

	stats := make(map[models.AlbumItemStatus]int64, len(rows))
	for _, r := range rows {
		stats[r.Status] = r.Cnt
	}
	return stats, nil
}

// SetAlbumItemStatus updates the status of a single membership row.
func (c *Catalog) SetAlbumItemStatus(ctx context.Context, id uint, status models.AlbumItemStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	err := c.db.WithContext(ctx).Model(&models.AlbumItem{}).
		Where("id = ?", id).
		Update("status", status).Error
	if err != nil {
		return fmt.Errorf("failed to set album item status: %w", err)
	}
	return nil
}

// MarkAlbumItemsStale marks all memberships of an album as stale. Marking the
// album alone does not cascade in storage, so staleness is propagated here
// explicitly.
func (c *Catalog) MarkAlbumItemsStale(ctx context.Context, albumID uint) (int64, error) {
	res := c.db.WithContext(ctx).Model(&models.AlbumItem{}).
		Where("album_id = ?", albumID).
		Update("status", models.AlbumItemStatusStale)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark album items stale: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteAlbumItem removes a membership row.
func (c *Catalog) DeleteAlbumItem(ctx context.Context, id uint) error {
	if err := c.db.WithContext(ctx).Delete(&models.AlbumItem{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete album item: %w", err)
	}
	return nil
}
