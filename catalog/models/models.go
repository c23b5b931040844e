package models

import (
	"time"
)

// MediaItemStatus represents the sync lifecycle state of a media item.
type MediaItemStatus string

const (
	// MediaItemStatusPendingSync means the item is indexed but its file has not been downloaded yet.
	MediaItemStatusPendingSync MediaItemStatus = "pending_sync"
	// MediaItemStatusSyncError means the last download attempt failed and will be retried.
	MediaItemStatusSyncError MediaItemStatus = "sync_error"
	// MediaItemStatusSynced means the file exists on disk and matches the remote item.
	MediaItemStatusSynced MediaItemStatus = "synced"
	// MediaItemStatusStale means the item was not seen in the last full remote listing.
	MediaItemStatusStale MediaItemStatus = "stale"
	// MediaItemStatusIgnored means the user excluded the item from syncing.
	MediaItemStatusIgnored MediaItemStatus = "ignored"
)

// Valid reports whether the status is part of the closed media item status set.
func (s MediaItemStatus) Valid() bool {
	switch s {
	case MediaItemStatusPendingSync, MediaItemStatusSyncError, MediaItemStatusSynced,
		MediaItemStatusStale, MediaItemStatusIgnored:
		return true
	}
	return false
}

// AlbumStatus represents the index lifecycle state of an album.
type AlbumStatus string

const (
	// AlbumStatusIndexed means the album and its membership are fully indexed.
	AlbumStatusIndexed AlbumStatus = "indexed"
	// AlbumStatusIndexError means walking the album membership failed and will be retried.
	AlbumStatusIndexError AlbumStatus = "index_error"
	// AlbumStatusStale means the album was not seen in the last full remote listing.
	AlbumStatusStale AlbumStatus = "stale"
)

// Valid reports whether the status is part of the closed album status set.
func (s AlbumStatus) Valid() bool {
	switch s {
	case AlbumStatusIndexed, AlbumStatusIndexError, AlbumStatusStale:
		return true
	}
	return false
}

// AlbumItemStatus represents the link lifecycle state of an album membership.
// It is independent of the media item's own status: an item can be synced
// globally while its link in a given album still needs to be created.
type AlbumItemStatus string

const (
	AlbumItemStatusPendingSync AlbumItemStatus = "pending_sync"
	AlbumItemStatusSyncError   AlbumItemStatus = "sync_error"
	AlbumItemStatusSynced      AlbumItemStatus = "synced"
	AlbumItemStatusStale       AlbumItemStatus = "stale"
	AlbumItemStatusIgnored     AlbumItemStatus = "ignored"
)

// Valid reports whether the status is part of the closed album item status set.
func (s AlbumItemStatus) Valid() bool {
	switch s {
	case AlbumItemStatusPendingSync, AlbumItemStatusSyncError, AlbumItemStatusSynced,
		AlbumItemStatusStale, AlbumItemStatusIgnored:
		return true
	}
	return false
}

// MediaItem represents one remote media item mirrored to the local library.
type MediaItem struct {
	ID       uint   `gorm:"primaryKey"`
	RemoteID string `gorm:"uniqueIndex;not null"`
	// Name is the display name as reported by the remote library.
	Name string `gorm:"not null"`
	// CName is the canonical filesystem name, unique within Path.
	CName    string `gorm:"not null;index:idx_media_cname_path"`
	MimeType string `gorm:"not null"`
	// Path is the library-relative destination directory (items/<year>/<month>).
	Path        string    `gorm:"not null;index:idx_media_cname_path"`
	CreateDate  time.Time `gorm:"not null"`
	ModifyDate  time.Time `gorm:"not null"`
	IndexDate   time.Time
	LastChecked time.Time       `gorm:"index"`
	Status      MediaItemStatus `gorm:"not null;index"`
}

// Album represents one remote album mirrored as a directory of links.
type Album struct {
	ID       uint   `gorm:"primaryKey"`
	RemoteID string `gorm:"uniqueIndex;not null"`
	Name     string `gorm:"not null"`
	CName    string `gorm:"not null;index:idx_album_cname_path"`
	Path     string `gorm:"not null;index:idx_album_cname_path"`
	// Size is the item count as last reported by the remote library.
	Size         int64 `gorm:"not null"`
	CoverPhotoID string
	IndexDate    time.Time
	LastChecked  time.Time   `gorm:"index"`
	Status       AlbumStatus `gorm:"not null;index"`
}

// AlbumItem is the membership of a media item in an album.
type AlbumItem struct {
	ID          uint            `gorm:"primaryKey"`
	AlbumID     uint            `gorm:"not null;uniqueIndex:idx_album_item"`
	MediaItemID uint            `gorm:"not null;uniqueIndex:idx_album_item"`
	Status      AlbumItemStatus `gorm:"not null;index"`
}

// Setting is a single key/value row used for run bookkeeping.
type Setting struct {
	Key   string `gorm:"primaryKey"`
	Value string
}
