package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/catalog"
	"github.com/jon4hz/photomirror/catalog/models"
	"github.com/jon4hz/photomirror/photos"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const (
	mediaItemsListPageSize  = 100
	mediaItemsBatchPageSize = 50
	itemsDir                = "items"
)

// errDownloadIntegrity marks a downloaded byte count that does not match the
// declared content length.
var errDownloadIntegrity = errors.New("download size mismatch")

// libraryAPI is the remote library surface the reconciliation engines
// consume.
type libraryAPI interface {
	ListMediaItems(ctx context.Context, pageToken string, pageSize int) (*photos.MediaItemsPage, error)
	SearchMediaItems(ctx context.Context, params photos.SearchParams) (*photos.MediaItemsPage, error)
	BatchGetMediaItems(ctx context.Context, remoteIDs []string) ([]photos.MediaItemResult, error)
	ListAlbums(ctx context.Context, pageToken string, pageSize int) (*photos.AlbumsPage, error)
}

// MediaItems reconciles remote media items against the catalog and the
// library directory: it decides which items need (re)indexing, marks removed
// ones stale, downloads content with bounded concurrency and sweeps obsolete
// state.
type MediaItems struct {
	libraryDir string
	cat        *catalog.Catalog
	api        libraryAPI
	log        *log.Logger

	dl *http.Client
}

func newMediaItems(libraryDir string, cat *catalog.Catalog, api libraryAPI, logger *log.Logger) *MediaItems {
	return &MediaItems{
		libraryDir: libraryDir,
		cat:        cat,
		api:        api,
		log:        logger.With("component", "media_items"),
	}
}

// IndexItems pages through the remote listing and indexes every item that
// needs it. Unless rescan is set, a non-zero lastIndex narrows the listing to
// items created since the last successful index. After a full rescan pass
// completes, items not seen during the pass are marked stale. Staleness is
// only asserted once the entire listing succeeded, so a failed page never
// causes premature data loss.
func (m *MediaItems) IndexItems(ctx context.Context, lastIndex time.Time, rescan bool) (ActionStats, error) {
	var info ActionStats
	checkDate := time.Now()

	var filters *photos.SearchFilters
	if !rescan && !lastIndex.IsZero() {
		from, err := photos.FormatDate(lastIndex.Format("2006-01-02"))
		if err != nil {
			return info, err
		}
		to, err := photos.FormatDate("9999-12-31")
		if err != nil {
			return info, err
		}
		filters = &photos.SearchFilters{
			MediaTypeFilter: &photos.MediaTypeFilter{MediaTypes: []string{"ALL_MEDIA"}},
			DateFilter:      &photos.DateFilter{Ranges: []photos.DateRange{{StartDate: from, EndDate: to}}},
		}
		m.log.Info("searching media items", "from", lastIndex.Format("2006-01-02"))
	}

	pageToken := ""
	for {
		var (
			page *photos.MediaItemsPage
			err  error
		)
		if filters != nil {
			page, err = m.api.SearchMediaItems(ctx, photos.SearchParams{
				PageToken: pageToken,
				PageSize:  mediaItemsListPageSize,
				Filters:   filters,
			})
		} else {
			page, err = m.api.ListMediaItems(ctx, pageToken, mediaItemsListPageSize)
		}
		if err != nil {
			return info, fmt.Errorf("failed to list media items: %w", err)
		}
		if page == nil {
			break
		}

		batchIndexed := 0
		err = m.cat.Transaction(func(tx *catalog.Catalog) error {
			for i := range page.MediaItems {
				item := &page.MediaItems[i]
				indexed, indexErr := m.indexItem(ctx, tx, item)
				if indexErr != nil {
					m.log.Error("failed to index media item", "name", item.Filename, "error", indexErr)
					info.Failed++
					continue
				}
				if indexed {
					batchIndexed++
					info.Indexed++
				} else {
					info.Skipped++
				}
			}
			return nil
		})
		if err != nil {
			return info, fmt.Errorf("failed to commit media items index page: %w", err)
		}

		if batchIndexed > 0 {
			m.log.Info("media items batch index", "indexed", batchIndexed)
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if rescan {
		stale, err := m.cat.MarkMediaItemsStale(ctx, checkDate)
		if err != nil {
			return info, err
		}
		if stale > 0 {
			m.log.Info("marked media items as stale", "count", stale)
		}
	}

	return info, nil
}

// indexItem indexes a single remote media item if its local state is missing
// or off the happy path, and reports whether indexing happened. Items that
// are current only get their last checked timestamp bumped.
func (m *MediaItems) indexItem(ctx context.Context, tx *catalog.Catalog, item *photos.MediaItem) (bool, error) {
	meta, err := tx.GetMediaItemByRemoteID(ctx, item.ID)
	if err != nil {
		return false, err
	}

	if !mediaItemIndexNeeded(meta) {
		if err := tx.TouchMediaItem(ctx, meta.ID, time.Now()); err != nil {
			return false, err
		}
		m.log.Debug("media item index skipped, not needed", "name", meta.Name)
		return false, nil
	}

	createDate, err := time.Parse(time.RFC3339, item.MediaMetadata.CreationTime)
	if err != nil {
		return false, fmt.Errorf("invalid creation time %q: %w", item.MediaMetadata.CreationTime, err)
	}

	path := pathByCreateDate(createDate)
	cname, err := m.canonicalName(ctx, tx, item.Filename, path)
	if err != nil {
		return false, err
	}

	now := time.Now()
	m.log.Debug("indexing media item", "name", item.Filename)
	err = tx.UpsertMediaItem(ctx, &models.MediaItem{
		RemoteID:    item.ID,
		Name:        item.Filename,
		CName:       cname,
		MimeType:    item.MimeType,
		Path:        path,
		CreateDate:  createDate,
		ModifyDate:  createDate,
		IndexDate:   now,
		LastChecked: now,
		Status:      models.MediaItemStatusPendingSync,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// mediaItemIndexNeeded is the index-needed policy: no row, or a row whose
// status is outside the happy set (errored or stale rows are always
// re-examined).
func mediaItemIndexNeeded(meta *models.MediaItem) bool {
	if meta == nil {
		return true
	}
	switch meta.Status {
	case models.MediaItemStatusSynced, models.MediaItemStatusPendingSync, models.MediaItemStatusIgnored:
		return false
	}
	return true
}

// canonicalName derives a filesystem-safe name unique within the destination
// directory by probing existing names and appending a numeric suffix.
func (m *MediaItems) canonicalName(ctx context.Context, tx *catalog.Catalog, filename, path string) (string, error) {
	ext := filepath.Ext(filename)
	base := fsSafeName(strings.TrimSuffix(filename, ext))
	name := base + ext

	for unique := 1; ; unique++ {
		existing, err := tx.SearchMediaItems(ctx, catalog.MediaItemSearch{CName: name, Path: path, Limit: 1})
		if err != nil {
			return "", err
		}
		if len(existing) == 0 {
			return name, nil
		}
		name = numberedName(base+ext, unique)
	}
}

// pathByCreateDate derives the library-relative destination directory of a
// media item from its remote creation date.
func pathByCreateDate(t time.Time) string {
	return filepath.Join(itemsDir, fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())))
}

// syncCandidate pairs a catalog row with its batch-get result.
type syncCandidate struct {
	meta      models.MediaItem
	item      *photos.MediaItem
	remoteErr string
}

// syncOutcome is the result of one item's sync attempt.
type syncOutcome string

const (
	outcomeSynced  syncOutcome = "synced"
	outcomeSkipped syncOutcome = "skipped"
	outcomeIgnored syncOutcome = "ignored"
)

// SyncItems downloads all pending or previously failed items with at most
// concurrency simultaneous downloads. Statuses are persisted per page; a
// failing item is downgraded to sync_error and retried on the next run, never
// aborting the phase.
func (m *MediaItems) SyncItems(ctx context.Context, concurrency int) (ActionStats, error) {
	var info ActionStats

	if concurrency <= 0 {
		concurrency = 1
	}
	m.dl = &http.Client{
		Timeout: 15 * time.Minute,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: concurrency,
		},
	}

	total64, err := m.cat.CountMediaItems(ctx,
		models.MediaItemStatusPendingSync, models.MediaItemStatusSyncError)
	if err != nil {
		return info, err
	}
	total, err := safecast.ToInt(total64)
	if err != nil {
		return info, err
	}
	if total == 0 {
		return info, nil
	}

	offset := 0
	processed := 0
	start := time.Now()

	for {
		candidates, err := m.itemsToSync(ctx, mediaItemsBatchPageSize, offset)
		if err != nil {
			return info, err
		}
		if len(candidates) == 0 {
			break
		}

		pageInfo, err := m.syncPage(ctx, candidates, concurrency)
		if err != nil {
			return info, err
		}
		info.Add(pageInfo)

		// Failed rows keep a status the page query matches, so skip past
		// them or the same page would repeat forever.
		offset += pageInfo.Failed
		processed += len(candidates)

		percentage, eta := batchProgress(start, processed, total)
		m.log.Info("media items batch sync", "progress", percentage, "eta", eta)
	}

	return info, nil
}

// itemsToSync selects one page of retryable rows and resolves them into
// remote details via batch get. A per-element failure becomes a remoteErr on
// the candidate instead of failing the page.
func (m *MediaItems) itemsToSync(ctx context.Context, limit, offset int) ([]syncCandidate, error) {
	metas, err := m.cat.SearchMediaItems(ctx, catalog.MediaItemSearch{
		Limit:  limit,
		Offset: offset,
		Status: []models.MediaItemStatus{
			models.MediaItemStatusPendingSync, models.MediaItemStatusSyncError,
		},
	})
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, nil
	}

	keys := lo.Map(metas, func(meta models.MediaItem, _ int) string { return meta.RemoteID })

	results, err := m.api.BatchGetMediaItems(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to batch get media items: %w", err)
	}
	if len(results) != len(metas) {
		return nil, fmt.Errorf("batch get returned %d results for %d items", len(results), len(metas))
	}

	candidates := make([]syncCandidate, 0, len(metas))
	for i, meta := range metas {
		candidate := syncCandidate{meta: meta}
		switch {
		case results[i].MediaItem != nil:
			candidate.item = results[i].MediaItem
		case results[i].Status != nil:
			candidate.remoteErr = results[i].Status.Message
		default:
			candidate.remoteErr = "empty batch get result"
		}
		candidates = append(candidates, candidate)
	}
	return candidates, nil
}

// syncPage fans the page out over a bounded task group, then persists all
// resulting statuses in a single transaction.
func (m *MediaItems) syncPage(ctx context.Context, candidates []syncCandidate, concurrency int) (ActionStats, error) {
	var info ActionStats

	type result struct {
		outcome syncOutcome
		err     error
	}
	results := make([]result, len(candidates))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i := range candidates {
		g.Go(func() error {
			outcome, err := m.syncItem(ctx, &candidates[i])
			results[i] = result{outcome: outcome, err: err}
			return nil
		})
	}
	_ = g.Wait() // workers never return errors, failures are carried per item

	err := m.cat.Transaction(func(tx *catalog.Catalog) error {
		for i, candidate := range candidates {
			res := results[i]
			if res.err != nil {
				m.log.Error("failed to sync media item", "name", candidate.meta.Name, "error", res.err)
				if err := tx.SetMediaItemStatus(ctx, candidate.meta.ID, models.MediaItemStatusSyncError); err != nil {
					return err
				}
				info.Failed++
				continue
			}

			// Skipped items already exist on disk, so both roll up to synced.
			if err := tx.SetMediaItemStatus(ctx, candidate.meta.ID, models.MediaItemStatusSynced); err != nil {
				return err
			}

			if res.outcome == outcomeSynced {
				info.Synced++
			} else {
				info.Skipped++
			}
		}
		return nil
	})
	if err != nil {
		return info, fmt.Errorf("failed to commit media items sync page: %w", err)
	}
	return info, nil
}

// syncItem downloads one media item into the library. The file is written to
// a temporary location first, verified against the declared content length
// and only then moved into place, so a crash or short read never leaves a
// partial file at the destination name.
func (m *MediaItems) syncItem(ctx context.Context, candidate *syncCandidate) (syncOutcome, error) {
	meta := &candidate.meta
	if candidate.remoteErr != "" {
		return "", errors.New(candidate.remoteErr)
	}
	item := candidate.item

	if meta.Path == "" {
		return "", errors.New("missing destination path")
	}
	if meta.CName == "" {
		return "", errors.New("missing file name")
	}
	if item.BaseURL == "" {
		return "", errors.New("missing download url")
	}

	mediaType := strings.SplitN(meta.MimeType, "/", 2)[0]
	if mediaType == "video" && !item.MediaMetadata.Video.Ready() {
		return "", errors.New("video is not ready for download")
	}

	destPath := filepath.Join(m.libraryDir, meta.Path)
	destFile := filepath.Join(destPath, meta.CName)

	// An existing file is kept only if its mtime matches the recorded modify
	// date exactly; anything else is re-downloaded.
	if stat, err := os.Stat(destFile); err == nil {
		if stat.ModTime().Equal(meta.ModifyDate) {
			m.log.Debug("media item sync skipped, file already exists", "name", meta.Name)
			return outcomeSkipped, nil
		}
		if err := os.Remove(destFile); err != nil {
			return "", fmt.Errorf("failed to remove outdated file: %w", err)
		}
	}

	downloadURL := item.BaseURL + "=d"
	if mediaType == "video" {
		downloadURL = item.BaseURL + "=dv"
	}

	m.log.Debug("downloading media item", "name", meta.Name)

	tmp, err := os.CreateTemp("", "photomirror-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if err := m.download(ctx, downloadURL, tmp); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return "", err
	}

	if err := os.MkdirAll(destPath, 0o755); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}
	if err := moveFile(tmpName, destFile); err != nil {
		os.Remove(tmpName) //nolint:errcheck
		return "", err
	}

	if err := os.Chtimes(destFile, meta.CreateDate, meta.ModifyDate); err != nil {
		return "", fmt.Errorf("failed to set file times: %w", err)
	}
	if err := os.Chmod(destFile, 0o644); err != nil {
		return "", fmt.Errorf("failed to set file permissions: %w", err)
	}

	return outcomeSynced, nil
}

// download fetches url into the open file f and closes it. The byte count
// must match the declared content length exactly.
func (m *MediaItems) download(ctx context.Context, url string, f *os.File) error {
	defer f.Close() //nolint:errcheck

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := m.dl.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download media item: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download media item: status %d", resp.StatusCode)
	}

	written, err := io.Copy(f, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to write media item: %w", err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fmt.Errorf("%w: downloaded %d bytes, content-length %d", errDownloadIntegrity, written, resp.ContentLength)
	}
	return nil
}

// ScanSyncedItemsFS re-verifies that every synced row still has a backing
// file and resets rows whose file went missing back to pending_sync.
func (m *MediaItems) ScanSyncedItemsFS(ctx context.Context) (ActionStats, error) {
	var info ActionStats

	offset := 0
	for {
		metas, err := m.cat.SearchMediaItems(ctx, catalog.MediaItemSearch{
			Limit:  100,
			Offset: offset,
			Status: []models.MediaItemStatus{models.MediaItemStatusSynced},
		})
		if err != nil {
			return info, err
		}
		if len(metas) == 0 {
			break
		}

		err = m.cat.Transaction(func(tx *catalog.Catalog) error {
			for _, meta := range metas {
				if m.itemExistsFS(&meta) {
					continue
				}
				m.log.Debug("media item missing on filesystem, resetting to pending_sync", "name", meta.Name)
				if err := tx.SetMediaItemStatus(ctx, meta.ID, models.MediaItemStatusPendingSync); err != nil {
					return err
				}
				info.Fixed++
			}
			return nil
		})
		if err != nil {
			return info, err
		}

		offset += len(metas)
	}

	return info, nil
}

func (m *MediaItems) itemExistsFS(meta *models.MediaItem) bool {
	_, err := os.Stat(filepath.Join(m.libraryDir, meta.Path, meta.CName))
	return err == nil
}

// DeleteObsoleteItems removes stale state in two independent passes: a
// catalog-driven pass deleting the file and row of every stale item, and a
// filesystem-driven walk deleting files no catalog row points at.
func (m *MediaItems) DeleteObsoleteItems(ctx context.Context) (ActionStats, error) {
	info, err := m.deleteObsoleteItemsByDB(ctx)
	if err != nil {
		return info, err
	}

	fsInfo := m.deleteObsoleteItemsByFS(ctx)
	info.Add(fsInfo)
	return info, nil
}

func (m *MediaItems) deleteObsoleteItemsByDB(ctx context.Context) (ActionStats, error) {
	var info ActionStats

	offset := 0
	for {
		metas, err := m.cat.SearchMediaItems(ctx, catalog.MediaItemSearch{
			Limit:  100,
			Offset: offset,
			Status: []models.MediaItemStatus{models.MediaItemStatusStale},
		})
		if err != nil {
			return info, err
		}
		if len(metas) == 0 {
			break
		}

		err = m.cat.Transaction(func(tx *catalog.Catalog) error {
			for _, meta := range metas {
				if err := m.deleteItemFile(&meta); err != nil {
					m.log.Error("failed to delete media item", "name", meta.Name, "error", err)
					offset++
					info.Failed++
					continue
				}
				if err := tx.DeleteMediaItem(ctx, meta.ID); err != nil {
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

func (m *MediaItems) deleteObsoleteItemsByFS(ctx context.Context) ActionStats {
	var info ActionStats

	root := filepath.Join(m.libraryDir, itemsDir)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(m.libraryDir, filepath.Dir(path))
		if err != nil {
			return err
		}

		metas, err := m.cat.SearchMediaItems(ctx, catalog.MediaItemSearch{CName: d.Name(), Path: rel, Limit: 1})
		if err != nil {
			return err
		}
		if len(metas) > 0 {
			return nil
		}

		m.log.Debug("media item not found in catalog, deleting", "file", d.Name())
		if err := os.Remove(path); err != nil {
			m.log.Error("failed to delete orphaned file", "file", path, "error", err)
			info.Failed++
			return nil
		}
		info.Deleted++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		m.log.Error("filesystem sweep failed", "error", err)
		info.Failed++
	}

	return info
}

func (m *MediaItems) deleteItemFile(meta *models.MediaItem) error {
	destFile := filepath.Join(m.libraryDir, meta.Path, meta.CName)

	m.log.Debug("deleting media item", "name", meta.Name)

	if err := os.Remove(destFile); err != nil {
		if os.IsNotExist(err) {
			m.log.Debug("media item deletion skipped, file not found", "name", meta.Name)
			return nil
		}
		return err
	}
	return nil
}

// IgnoreItems forces the given items to ignored so they are exempt from
// downloading.
func (m *MediaItems) IgnoreItems(ctx context.Context, remoteIDs []string) (ActionStats, error) {
	var info ActionStats

	err := m.cat.Transaction(func(tx *catalog.Catalog) error {
		for _, remoteID := range remoteIDs {
			meta, err := tx.GetMediaItemByRemoteID(ctx, remoteID)
			if err != nil {
				return err
			}
			if meta == nil {
				m.log.Warn("cannot ignore unknown media item", "remote_id", remoteID)
				info.Failed++
				continue
			}
			if err := tx.SetMediaItemStatus(ctx, meta.ID, models.MediaItemStatusIgnored); err != nil {
				return err
			}
			info.Ignored++
		}
		return nil
	})
	if err != nil {
		return info, err
	}
	return info, nil
}

// ResetIgnoredItems reverts all ignored items back to pending_sync.
func (m *MediaItems) ResetIgnoredItems(ctx context.Context) (ActionStats, error) {
	var info ActionStats

	reset, err := m.cat.ResetIgnoredMediaItems(ctx)
	if err != nil {
		return info, err
	}
	cnt, err := safecast.ToInt(reset)
	if err != nil {
		return info, err
	}
	info.Fixed = cnt
	return info, nil
}

// Stats returns the number of media items per status.
func (m *MediaItems) Stats(ctx context.Context) (map[models.MediaItemStatus]int64, error) {
	return m.cat.MediaItemStats(ctx)
}
