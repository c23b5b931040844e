package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/catalog"
	"github.com/jon4hz/photomirror/catalog/models"
	"github.com/jon4hz/photomirror/config"
	"github.com/jon4hz/photomirror/photos"
)

const (
	lockFileName   = "photomirror.lock"
	libraryDirName = "library"

	settingMediaLastIndex  = "media_items_last_index"
	settingAlbumsLastIndex = "albums_last_index"
)

// Identity is one mirrored account: its catalog, its library directory, its
// API session and the engines operating on them. All operations of an
// identity run under its run lock, so two processes never reconcile the same
// library concurrently.
type Identity struct {
	name string
	cfg  *config.IdentityConfig
	cat  *catalog.Catalog
	auth *photos.Auth
	lock *runLock
	log  *log.Logger

	media  *MediaItems
	albums *Albums
}

// NewIdentity opens the identity's data directory, catalog and API session.
func NewIdentity(name string, cfg *config.IdentityConfig, logger *log.Logger) (*Identity, error) {
	logger = logger.With("identity", name)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cat, err := catalog.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	var authOpts []photos.AuthOption
	if cfg.Webserver {
		authOpts = append(authOpts, photos.WithWebserver(cfg.WebserverPort))
	}
	auth, err := photos.NewAuth(cfg.AuthFile, &settingsTokenStore{cat: cat}, logger, authOpts...)
	if err != nil {
		cat.Close() //nolint:errcheck
		return nil, err
	}

	api := photos.New(auth, logger)
	libraryDir := filepath.Join(cfg.DataDir, libraryDirName)
	media := newMediaItems(libraryDir, cat, api, logger)
	albums := newAlbums(libraryDir, cat, api, media, cfg.Symlinks(), logger)

	return &Identity{
		name:   name,
		cfg:    cfg,
		cat:    cat,
		auth:   auth,
		lock:   newRunLock(filepath.Join(cfg.DataDir, lockFileName)),
		log:    logger,
		media:  media,
		albums: albums,
	}, nil
}

// Name returns the identity name from the configuration.
func (e *Identity) Name() string {
	return e.name
}

// Lock acquires the identity's run lock. It returns ErrLocked when another
// process holds it.
func (e *Identity) Lock() error {
	return e.lock.Acquire()
}

// Unlock releases the identity's run lock.
func (e *Identity) Unlock() error {
	return e.lock.Release()
}

// Close closes the identity's catalog.
func (e *Identity) Close() error {
	return e.cat.Close()
}

// IndexOptions controls an index run.
type IndexOptions struct {
	// Rescan forces a full listing walk and a stale sweep instead of the
	// incremental date-filtered search.
	Rescan bool
	// SkipMediaItems skips the media items phase.
	SkipMediaItems bool
	// SkipAlbums skips the albums phase.
	SkipAlbums bool
	// Albums restricts the albums phase to the named albums.
	Albums []string
}

// SyncOptions controls a sync run.
type SyncOptions struct {
	IndexOptions

	// SkipIndex skips the index phase entirely.
	SkipIndex bool
	// Concurrency overrides the configured download concurrency when > 0.
	Concurrency int
}

// Index reconciles the catalog against the remote library: media items
// first, then albums. The media items watermark only advances after a pass
// with zero failures, so a flaky run re-covers the same window next time.
func (e *Identity) Index(ctx context.Context, opts IndexOptions) (ActionStats, error) {
	var total ActionStats
	start := time.Now()

	if len(opts.Albums) == 0 {
		opts.Albums = e.cfg.Albums
	}

	if !opts.SkipMediaItems {
		lastIndex, err := e.lastIndex(ctx, settingMediaLastIndex)
		if err != nil {
			return total, err
		}

		e.log.Info("indexing media items")
		info, err := e.media.IndexItems(ctx, lastIndex, opts.Rescan)
		total.Add(info)
		if err != nil {
			return total, err
		}
		e.log.Info("media items index done", "result", info.String())

		if info.Failed == 0 {
			if err := e.cat.SetSetting(ctx, settingMediaLastIndex, start.Format(time.RFC3339)); err != nil {
				return total, err
			}
		}
	}

	if !opts.SkipAlbums {
		e.log.Info("indexing albums")
		info, err := e.albums.IndexAlbums(ctx, opts.Albums)
		total.Add(info)
		if err != nil {
			return total, err
		}
		e.log.Info("albums index done", "result", info.String())

		if info.Failed == 0 && len(opts.Albums) == 0 {
			if err := e.cat.SetSetting(ctx, settingAlbumsLastIndex, start.Format(time.RFC3339)); err != nil {
				return total, err
			}
		}
	}

	return total, nil
}

// Sync brings the library up to date: index (unless skipped), repair rows
// whose files went missing, download pending media items and create pending
// album links.
func (e *Identity) Sync(ctx context.Context, opts SyncOptions) (ActionStats, error) {
	var total ActionStats

	if !opts.SkipIndex {
		info, err := e.Index(ctx, opts.IndexOptions)
		total.Add(info)
		if err != nil {
			return total, err
		}
	}

	if info, err := e.media.ScanSyncedItemsFS(ctx); err != nil {
		return total, err
	} else if !info.Empty() {
		total.Add(info)
		e.log.Info("media items filesystem scan done", "result", info.String())
	}
	if info, err := e.albums.ScanSyncedAlbumItemsFS(ctx); err != nil {
		return total, err
	} else if !info.Empty() {
		total.Add(info)
		e.log.Info("album items filesystem scan done", "result", info.String())
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = e.cfg.Concurrency
	}

	e.log.Info("syncing media items", "concurrency", concurrency)
	info, err := e.media.SyncItems(ctx, concurrency)
	total.Add(info)
	if err != nil {
		return total, err
	}
	e.log.Info("media items sync done", "result", info.String())

	e.log.Info("syncing album items")
	info, err = e.albums.SyncAlbumItems(ctx)
	total.Add(info)
	if err != nil {
		return total, err
	}
	e.log.Info("album items sync done", "result", info.String())

	return total, nil
}

// DeleteObsolete removes everything marked stale, links before albums before
// media files, so no album link ever outlives its target.
func (e *Identity) DeleteObsolete(ctx context.Context) (ActionStats, error) {
	var total ActionStats

	e.log.Info("deleting obsolete album items")
	info, err := e.albums.DeleteObsoleteAlbumItems(ctx)
	total.Add(info)
	if err != nil {
		return total, err
	}

	e.log.Info("deleting obsolete albums")
	info, err = e.albums.DeleteObsoleteAlbums(ctx)
	total.Add(info)
	if err != nil {
		return total, err
	}

	e.log.Info("deleting obsolete media items")
	info, err = e.media.DeleteObsoleteItems(ctx)
	total.Add(info)
	if err != nil {
		return total, err
	}

	return total, nil
}

// Auth runs the interactive OAuth2 flow and persists the resulting token.
func (e *Identity) Auth(ctx context.Context) error {
	return e.auth.IssueNewToken(ctx)
}

// Ignore marks the given media items as ignored.
func (e *Identity) Ignore(ctx context.Context, remoteIDs []string) (ActionStats, error) {
	return e.media.IgnoreItems(ctx, remoteIDs)
}

// ResetIgnored reverts all ignored media items to pending_sync.
func (e *Identity) ResetIgnored(ctx context.Context) (ActionStats, error) {
	return e.media.ResetIgnoredItems(ctx)
}

// Stats is the per-identity catalog summary.
type Stats struct {
	MediaItems      map[models.MediaItemStatus]int64
	Albums          map[models.AlbumStatus]int64
	AlbumItems      map[models.AlbumItemStatus]int64
	LastMediaIndex  time.Time
	LastAlbumsIndex time.Time
}

// Stats returns per-status counts and the last index watermarks.
func (e *Identity) Stats(ctx context.Context) (*Stats, error) {
	media, err := e.media.Stats(ctx)
	if err != nil {
		return nil, err
	}
	albums, err := e.albums.StatsAlbums(ctx)
	if err != nil {
		return nil, err
	}
	albumItems, err := e.albums.StatsAlbumItems(ctx)
	if err != nil {
		return nil, err
	}
	lastMedia, err := e.lastIndex(ctx, settingMediaLastIndex)
	if err != nil {
		return nil, err
	}
	lastAlbums, err := e.lastIndex(ctx, settingAlbumsLastIndex)
	if err != nil {
		return nil, err
	}

	return &Stats{
		MediaItems:      media,
		Albums:          albums,
		AlbumItems:      albumItems,
		LastMediaIndex:  lastMedia,
		LastAlbumsIndex: lastAlbums,
	}, nil
}

func (e *Identity) lastIndex(ctx context.Context, key string) (time.Time, error) {
	raw, err := e.cat.GetSetting(ctx, key)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return t, nil
}
