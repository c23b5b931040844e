package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/catalog"
	"github.com/jon4hz/photomirror/catalog/models"
	"github.com/jon4hz/photomirror/photos"
	"github.com/samber/lo"
)

const (
	albumsListPageSize = 50
	albumsDir          = "albums"
)

// Albums reconciles remote albums against the catalog and mirrors each album
// as a directory of links into the media item library. Membership indexing
// routes every album item through the media item engine, so album indexing
// also discovers items the plain listing may miss.
type Albums struct {
	libraryDir string
	cat        *catalog.Catalog
	api        libraryAPI
	media      *MediaItems
	symlinks   bool
	log        *log.Logger
}

func newAlbums(libraryDir string, cat *catalog.Catalog, api libraryAPI, media *MediaItems, symlinks bool, logger *log.Logger) *Albums {
	return &Albums{
		libraryDir: libraryDir,
		cat:        cat,
		api:        api,
		media:      media,
		symlinks:   symlinks,
		log:        logger.With("component", "albums"),
	}
}

// IndexAlbums walks the full remote album listing and (re)indexes every album
// whose stored state drifted from the remote one. When filter is non-empty
// only the named albums are considered and the stale sweep is skipped, since
// a partial listing says nothing about the albums it excluded.
func (a *Albums) IndexAlbums(ctx context.Context, filter []string) (ActionStats, error) {
	var info ActionStats
	checkDate := time.Now()

	pageToken := ""
	for {
		page, err := a.api.ListAlbums(ctx, pageToken, albumsListPageSize)
		if err != nil {
			return info, fmt.Errorf("failed to list albums: %w", err)
		}
		if page == nil {
			break
		}

		// One listing page commits as a unit, like the media items index.
		err = a.cat.Transaction(func(tx *catalog.Catalog) error {
			for i := range page.Albums {
				album := &page.Albums[i]
				if len(filter) > 0 && !lo.Contains(filter, album.Title) {
					continue
				}

				indexed, err := a.indexAlbum(ctx, tx, album)
				if err != nil {
					a.log.Error("failed to index album", "name", album.Title, "error", err)
					info.Failed++
					continue
				}
				if indexed {
					info.Indexed++
				} else {
					info.Skipped++
				}
			}
			return nil
		})
		if err != nil {
			return info, fmt.Errorf("failed to commit albums index page: %w", err)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(filter) == 0 && info.Failed == 0 {
		stale, err := a.cat.MarkAlbumsStale(ctx, checkDate)
		if err != nil {
			return info, err
		}
		if stale > 0 {
			a.log.Info("marked albums as stale", "count", stale)
			if err := a.propagateStaleAlbums(ctx); err != nil {
				return info, err
			}
		}
	}

	return info, nil
}

// indexAlbum indexes one album including its membership, and reports whether
// indexing happened. A membership walk failure leaves the album in
// index_error so the next run retries it.
func (a *Albums) indexAlbum(ctx context.Context, tx *catalog.Catalog, album *photos.Album) (bool, error) {
	meta, err := tx.GetAlbumByRemoteID(ctx, album.ID)
	if err != nil {
		return false, err
	}

	size, err := strconv.ParseInt(album.MediaItemsCount, 10, 64)
	if err != nil && album.MediaItemsCount != "" {
		return false, fmt.Errorf("invalid media items count %q: %w", album.MediaItemsCount, err)
	}

	needed, err := a.albumIndexNeeded(ctx, tx, meta, album, size)
	if err != nil {
		return false, err
	}
	if !needed {
		if err := tx.TouchAlbum(ctx, meta.ID, time.Now()); err != nil {
			return false, err
		}
		a.log.Debug("album index skipped, not needed", "name", meta.Name)
		return false, nil
	}

	cname := ""
	if meta != nil {
		cname = meta.CName
		if meta.Name != album.Title {
			a.log.Info("album was renamed", "old", meta.Name, "new", album.Title)
			cname = ""
		}
	}
	if cname == "" {
		cname, err = a.canonicalAlbumName(ctx, tx, album.Title)
		if err != nil {
			return false, err
		}
	}

	now := time.Now()
	a.log.Info("indexing album", "name", album.Title, "items", size)
	err = tx.UpsertAlbum(ctx, &models.Album{
		RemoteID:     album.ID,
		Name:         album.Title,
		CName:        cname,
		Path:         albumsDir,
		Size:         size,
		CoverPhotoID: album.CoverPhotoMediaItemID,
		IndexDate:    now,
		LastChecked:  now,
		Status:       models.AlbumStatusIndexed,
	})
	if err != nil {
		return false, err
	}

	meta, err = tx.GetAlbumByRemoteID(ctx, album.ID)
	if err != nil {
		return false, err
	}
	if meta == nil {
		return false, errors.New("album vanished after upsert")
	}

	if err := a.indexAlbumItems(ctx, tx, meta); err != nil {
		if serr := tx.SetAlbumStatus(ctx, meta.ID, models.AlbumStatusIndexError); serr != nil {
			return false, serr
		}
		return false, err
	}
	return true, nil
}

// albumIndexNeeded is the album index-needed policy. Any drift between the
// stored row and the remote album triggers a reindex: a missing or errored
// row, a changed title, a remote size differing from the stored one, or a
// stored size differing from the non-stale membership count.
func (a *Albums) albumIndexNeeded(ctx context.Context, tx *catalog.Catalog, meta *models.Album, album *photos.Album, size int64) (bool, error) {
	if meta == nil {
		return true, nil
	}
	if meta.Status != models.AlbumStatusIndexed {
		return true, nil
	}
	if meta.Name != album.Title {
		return true, nil
	}
	if meta.Size != size {
		return true, nil
	}

	members, err := tx.CountAlbumItems(ctx, catalog.AlbumItemSearch{
		AlbumID:   meta.ID,
		StatusNot: []models.AlbumItemStatus{models.AlbumItemStatusStale},
	})
	if err != nil {
		return false, err
	}
	return members != size, nil
}

// canonicalAlbumName derives a filesystem-safe directory name unique within
// the albums directory.
func (a *Albums) canonicalAlbumName(ctx context.Context, tx *catalog.Catalog, title string) (string, error) {
	base := fsSafeName(title)
	if base == "" {
		base = "untitled"
	}
	name := base

	for unique := 1; ; unique++ {
		existing, err := tx.SearchAlbums(ctx, catalog.AlbumSearch{CName: name, Path: albumsDir, Limit: 1})
		if err != nil {
			return "", err
		}
		if len(existing) == 0 {
			return name, nil
		}
		name = numberedName(base, unique)
	}
}

// indexAlbumItems re-walks the album membership. All memberships are marked
// stale up front and every item still present flips back to pending_sync, so
// whatever stays stale afterwards was removed from the album remotely.
func (a *Albums) indexAlbumItems(ctx context.Context, tx *catalog.Catalog, meta *models.Album) error {
	if _, err := tx.MarkAlbumItemsStale(ctx, meta.ID); err != nil {
		return err
	}

	pageToken := ""
	for {
		page, err := a.api.SearchMediaItems(ctx, photos.SearchParams{
			AlbumID:   meta.RemoteID,
			PageToken: pageToken,
			PageSize:  mediaItemsListPageSize,
		})
		if err != nil {
			return fmt.Errorf("failed to list album media items: %w", err)
		}
		if page == nil {
			break
		}

		// The caller already runs this inside the album page transaction.
		for i := range page.MediaItems {
			item := &page.MediaItems[i]
			if _, err := a.media.indexItem(ctx, tx, item); err != nil {
				return err
			}
			itemMeta, err := tx.GetMediaItemByRemoteID(ctx, item.ID)
			if err != nil {
				return err
			}
			if itemMeta == nil {
				return fmt.Errorf("media item %q vanished after indexing", item.Filename)
			}
			err = tx.UpsertAlbumItem(ctx, &models.AlbumItem{
				AlbumID:     meta.ID,
				MediaItemID: itemMeta.ID,
				Status:      models.AlbumItemStatusPendingSync,
			})
			if err != nil {
				return err
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return nil
}

// propagateStaleAlbums marks the memberships of every stale album stale, so
// the obsolete sweep removes the links before the album directory itself.
func (a *Albums) propagateStaleAlbums(ctx context.Context) error {
	offset := 0
	for {
		albums, err := a.cat.SearchAlbums(ctx, catalog.AlbumSearch{
			Limit:  100,
			Offset: offset,
			Status: []models.AlbumStatus{models.AlbumStatusStale},
		})
		if err != nil {
			return err
		}
		if len(albums) == 0 {
			return nil
		}
		for _, album := range albums {
			if _, err := a.cat.MarkAlbumItemsStale(ctx, album.ID); err != nil {
				return err
			}
		}
		offset += len(albums)
	}
}

// SyncAlbumItems creates the missing links for all pending or previously
// failed memberships. A membership whose media item is not downloaded yet
// fails with a retryable error and is picked up again on the next run.
func (a *Albums) SyncAlbumItems(ctx context.Context) (ActionStats, error) {
	var info ActionStats

	offset := 0
	for {
		items, err := a.cat.SearchAlbumItems(ctx, catalog.AlbumItemSearch{
			Limit:  100,
			Offset: offset,
			Status: []models.AlbumItemStatus{models.AlbumItemStatusPendingSync, models.AlbumItemStatusSyncError},
		})
		if err != nil {
			return info, err
		}
		if len(items) == 0 {
			break
		}

		err = a.cat.Transaction(func(tx *catalog.Catalog) error {
			for i := range items {
				item := &items[i]
				outcome, syncErr := a.syncAlbumItem(item)
				if syncErr != nil {
					a.log.Error("failed to sync album item", "album", item.AlbumName, "name", item.ItemName, "error", syncErr)
					if err := tx.SetAlbumItemStatus(ctx, item.ID, models.AlbumItemStatusSyncError); err != nil {
						return err
					}
					offset++
					info.Failed++
					continue
				}

				status := models.AlbumItemStatusSynced
				if outcome == outcomeIgnored {
					status = models.AlbumItemStatusIgnored
				}
				if err := tx.SetAlbumItemStatus(ctx, item.ID, status); err != nil {
					return err
				}

				switch outcome {
				case outcomeSynced:
					info.Synced++
				case outcomeIgnored:
					info.Ignored++
				default:
					info.Skipped++
				}
			}
			return nil
		})
		if err != nil {
			return info, fmt.Errorf("failed to commit album items sync page: %w", err)
		}
	}

	return info, nil
}

// syncAlbumItem creates a single album link. Symlinks point at the media file
// relative to the album directory, so the library stays relocatable as a
// whole.
func (a *Albums) syncAlbumItem(item *catalog.AlbumItemDetail) (syncOutcome, error) {
	if item.ItemStatus == models.MediaItemStatusIgnored {
		a.log.Debug("album item sync skipped, media item ignored", "name", item.ItemName)
		return outcomeIgnored, nil
	}
	if item.ItemStatus != models.MediaItemStatusSynced {
		return "", fmt.Errorf("media item not synced yet (status %q)", item.ItemStatus)
	}

	albumDir := filepath.Join(a.libraryDir, item.AlbumPath, item.AlbumCName)
	linkPath := filepath.Join(albumDir, item.ItemCName)
	itemPath := filepath.Join(a.libraryDir, item.ItemPath, item.ItemCName)

	if _, err := os.Lstat(linkPath); err == nil {
		a.log.Debug("album item sync skipped, link already exists", "name", item.ItemCName)
		return outcomeSkipped, nil
	}

	if err := os.MkdirAll(albumDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create album directory: %w", err)
	}

	if a.symlinks {
		target, err := filepath.Rel(albumDir, itemPath)
		if err != nil {
			return "", err
		}
		if err := os.Symlink(target, linkPath); err != nil {
			return "", fmt.Errorf("failed to create symlink: %w", err)
		}
	} else {
		if err := os.Link(itemPath, linkPath); err != nil {
			return "", fmt.Errorf("failed to create hardlink: %w", err)
		}
	}

	a.log.Debug("linked album item", "album", item.AlbumCName, "name", item.ItemCName)
	return outcomeSynced, nil
}

// ScanSyncedAlbumItemsFS re-verifies that every synced membership still has
// its link on disk and resets rows whose link went missing.
func (a *Albums) ScanSyncedAlbumItemsFS(ctx context.Context) (ActionStats, error) {
	var info ActionStats

	offset := 0
	for {
		items, err := a.cat.SearchAlbumItems(ctx, catalog.AlbumItemSearch{
			Limit:  100,
			Offset: offset,
			Status: []models.AlbumItemStatus{models.AlbumItemStatusSynced},
		})
		if err != nil {
			return info, err
		}
		if len(items) == 0 {
			break
		}

		err = a.cat.Transaction(func(tx *catalog.Catalog) error {
			for _, item := range items {
				linkPath := filepath.Join(a.libraryDir, item.AlbumPath, item.AlbumCName, item.ItemCName)
				if _, err := os.Lstat(linkPath); err == nil {
					continue
				}
				a.log.Debug("album link missing on filesystem, resetting to pending_sync", "name", item.ItemCName)
				if err := tx.SetAlbumItemStatus(ctx, item.ID, models.AlbumItemStatusPendingSync); err != nil {
					return err
				}
				info.Fixed++
			}
			return nil
		})
		if err != nil {
			return info, err
		}

		offset += len(items)
	}

	return info, nil
}

// DeleteObsoleteAlbumItems removes stale membership state in two passes: a
// catalog-driven pass removing the link and row of every stale membership,
// and a filesystem walk removing links no membership row points at.
func (a *Albums) DeleteObsoleteAlbumItems(ctx context.Context) (ActionStats, error) {
	info, err := a.deleteObsoleteAlbumItemsByDB(ctx)
	if err != nil {
		return info, err
	}

	fsInfo := a.deleteObsoleteAlbumItemsByFS(ctx)
	info.Add(fsInfo)
	return info, nil
}

func (a *Albums) deleteObsoleteAlbumItemsByDB(ctx context.Context) (ActionStats, error) {
	var info ActionStats

	offset := 0
	for {
		items, err := a.cat.SearchAlbumItems(ctx, catalog.AlbumItemSearch{
			Limit:  100,
			Offset: offset,
			Status: []models.AlbumItemStatus{models.AlbumItemStatusStale},
		})
		if err != nil {
			return info, err
		}
		if len(items) == 0 {
			break
		}

		err = a.cat.Transaction(func(tx *catalog.Catalog) error {
			for _, item := range items {
				linkPath := filepath.Join(a.libraryDir, item.AlbumPath, item.AlbumCName, item.ItemCName)
				if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
					a.log.Error("failed to delete album link", "name", item.ItemCName, "error", err)
					offset++
					info.Failed++
					continue
				}
				if err := tx.DeleteAlbumItem(ctx, item.ID); err != nil {
					return err
				}
				info.Deleted++
			}
			return nil
		})
		if err != nil {
			return info, err
		}
	}

	return info, nil
}

func (a *Albums) deleteObsoleteAlbumItemsByFS(ctx context.Context) ActionStats {
	var info ActionStats

	root := filepath.Join(a.libraryDir, albumsDir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		albumCName := filepath.Base(filepath.Dir(path))
		items, err := a.cat.SearchAlbumItems(ctx, catalog.AlbumItemSearch{
			AlbumCName: albumCName,
			ItemCName:  d.Name(),
			Limit:      1,
		})
		if err != nil {
			return err
		}
		if len(items) > 0 {
			return nil
		}

		a.log.Debug("album link not found in catalog, deleting", "file", d.Name())
		if err := os.Remove(path); err != nil {
			a.log.Error("failed to delete orphaned link", "file", path, "error", err)
			info.Failed++
			return nil
		}
		info.Deleted++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		a.log.Error("filesystem sweep failed", "error", err)
		info.Failed++
	}

	return info
}

// DeleteObsoleteAlbums removes stale album rows and their now-empty
// directories, then sweeps album directories no catalog row points at. A
// directory that still has entries is left in place and reported as failed,
// since removing it would destroy links the membership sweep missed.
func (a *Albums) DeleteObsoleteAlbums(ctx context.Context) (ActionStats, error) {
	var info ActionStats

	offset := 0
	for {
		albums, err := a.cat.SearchAlbums(ctx, catalog.AlbumSearch{
			Limit:  100,
			Offset: offset,
			Status: []models.AlbumStatus{models.AlbumStatusStale},
		})
		if err != nil {
			return info, err
		}
		if len(albums) == 0 {
			break
		}

		err = a.cat.Transaction(func(tx *catalog.Catalog) error {
			for _, album := range albums {
				albumDir := filepath.Join(a.libraryDir, album.Path, album.CName)
				if err := os.Remove(albumDir); err != nil && !os.IsNotExist(err) {
					a.log.Error("failed to delete album directory", "name", album.CName, "error", err)
					offset++
					info.Failed++
					continue
				}
				if err := tx.DeleteAlbum(ctx, album.ID); err != nil {
					return err
				}
				info.Deleted++
			}
			return nil
		})
		if err != nil {
			return info, err
		}
	}

	fsInfo := a.deleteObsoleteAlbumDirsByFS(ctx)
	info.Add(fsInfo)
	return info, nil
}

func (a *Albums) deleteObsoleteAlbumDirsByFS(ctx context.Context) ActionStats {
	var info ActionStats

	root := filepath.Join(a.libraryDir, albumsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) {
			a.log.Error("filesystem sweep failed", "error", err)
			info.Failed++
		}
		return info
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		albums, err := a.cat.SearchAlbums(ctx, catalog.AlbumSearch{CName: entry.Name(), Path: albumsDir, Limit: 1})
		if err != nil {
			a.log.Error("filesystem sweep failed", "error", err)
			info.Failed++
			continue
		}
		if len(albums) > 0 {
			continue
		}

		a.log.Debug("album directory not found in catalog, deleting", "dir", entry.Name())
		if err := os.Remove(filepath.Join(root, entry.Name())); err != nil {
			a.log.Error("failed to delete orphaned album directory", "dir", entry.Name(), "error", err)
			info.Failed++
			continue
		}
		info.Deleted++
	}

	return info
}

// StatsAlbums returns the number of albums per status.
func (a *Albums) StatsAlbums(ctx context.Context) (map[models.AlbumStatus]int64, error) {
	return a.cat.AlbumStats(ctx)
}

// StatsAlbumItems returns the number of memberships per status.
func (a *Albums) StatsAlbumItems(ctx context.Context) (map[models.AlbumItemStatus]int64, error) {
	return a.cat.AlbumItemStats(ctx)
}
