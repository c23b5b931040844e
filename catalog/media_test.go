package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/photomirror/catalog/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() }) //nolint:errcheck
	return cat
}

func testMediaItem(remoteID, cname string) *models.MediaItem {
	now := time.Now()
	return &models.MediaItem{
		RemoteID:    remoteID,
		Name:        cname,
		CName:       cname,
		MimeType:    "image/jpeg",
		Path:        "items/2023/06",
		CreateDate:  now,
		ModifyDate:  now,
		IndexDate:   now,
		LastChecked: now,
		Status:      models.MediaItemStatusPendingSync,
	}
}

func TestCatalog_UpsertMediaItem(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertMediaItem(ctx, testMediaItem("remote-1", "a.jpg")))

	item, err := cat.GetMediaItemByRemoteID(ctx, "remote-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.MediaItemStatusPendingSync, item.Status)

	// Upserting the same remote ID must refresh the row, not duplicate it.
	update := testMediaItem("remote-1", "a.jpg")
	update.Status = models.MediaItemStatusSynced
	require.NoError(t, cat.UpsertMediaItem(ctx, update))

	count, err := cat.CountMediaItems(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	item, err = cat.GetMediaItemByRemoteID(ctx, "remote-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.MediaItemStatusSynced, item.Status)
}

func TestCatalog_UpsertMediaItem_InvalidStatus(t *testing.T) {
	cat := newTestCatalog(t)

	item := testMediaItem("remote-1", "a.jpg")
	item.Status = "syncing"
	err := cat.UpsertMediaItem(context.Background(), item)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCatalog_GetMediaItemByRemoteID_NotFound(t *testing.T) {
	cat := newTestCatalog(t)

	item, err := cat.GetMediaItemByRemoteID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestCatalog_SearchMediaItems(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertMediaItem(ctx, testMediaItem("remote-1", "a.jpg")))
	require.NoError(t, cat.UpsertMediaItem(ctx, testMediaItem("remote-2", "b.jpg")))

	synced := testMediaItem("remote-3", "c.jpg")
	synced.Status = models.MediaItemStatusSynced
	require.NoError(t, cat.UpsertMediaItem(ctx, synced))

	tests := []struct {
		name   string
		search MediaItemSearch
		want   []string
	}{
		{
			name:   "all",
			search: MediaItemSearch{},
			want:   []string{"remote-1", "remote-2", "remote-3"},
		},
		{
			name:   "by status",
			search: MediaItemSearch{Status: []models.MediaItemStatus{models.MediaItemStatusSynced}},
			want:   []string{"remote-3"},
		},
		{
			name:   "by status not",
			search: MediaItemSearch{StatusNot: []models.MediaItemStatus{models.MediaItemStatusSynced}},
			want:   []string{"remote-1", "remote-2"},
		},
		{
			name:   "by cname and path",
			search: MediaItemSearch{CName: "b.jpg", Path: "items/2023/06"},
			want:   []string{"remote-2"},
		},
		{
			name:   "limit and offset",
			search: MediaItemSearch{Limit: 1, Offset: 1},
			want:   []string{"remote-2"},
		},
		{
			name:   "no match",
			search: MediaItemSearch{CName: "missing.jpg"},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := cat.SearchMediaItems(ctx, tt.search)
			require.NoError(t, err)

			got := make([]string, 0, len(items))
			for _, item := range items {
				got = append(got, item.RemoteID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalog_MarkMediaItemsStale(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	old := testMediaItem("remote-1", "a.jpg")
	old.LastChecked = time.Now().Add(-time.Hour)
	require.NoError(t, cat.UpsertMediaItem(ctx, old))
	require.NoError(t, cat.UpsertMediaItem(ctx, testMediaItem("remote-2", "b.jpg")))

	stale, err := cat.MarkMediaItemsStale(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, stale)

	item, err := cat.GetMediaItemByRemoteID(ctx, "remote-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.MediaItemStatusStale, item.Status)

	item, err = cat.GetMediaItemByRemoteID(ctx, "remote-2")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.MediaItemStatusPendingSync, item.Status)
}

func TestCatalog_ResetIgnoredMediaItems(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	ignored := testMediaItem("remote-1", "a.jpg")
	ignored.Status = models.MediaItemStatusIgnored
	require.NoError(t, cat.UpsertMediaItem(ctx, ignored))
	require.NoError(t, cat.UpsertMediaItem(ctx, testMediaItem("remote-2", "b.jpg")))

	reset, err := cat.ResetIgnoredMediaItems(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, reset)

	item, err := cat.GetMediaItemByRemoteID(ctx, "remote-1")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, models.MediaItemStatusPendingSync, item.Status)
}

func TestCatalog_MediaItemStats(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.UpsertMediaItem(ctx, testMediaItem("remote-1", "a.jpg")))
	require.NoError(t, cat.UpsertMediaItem(ctx, testMediaItem("remote-2", "b.jpg")))
	synced := testMediaItem("remote-3", "c.jpg")
	synced.Status = models.MediaItemStatusSynced
	require.NoError(t, cat.UpsertMediaItem(ctx, synced))

	stats, err := cat.MediaItemStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats[models.MediaItemStatusPendingSync])
	assert.EqualValues(t, 1, stats[models.MediaItemStatusSynced])
	assert.EqualValues(t, 0, stats[models.MediaItemStatusStale])
}

func TestCatalog_Settings(t *testing.T) {
	cat := newTestCatalog(t)
	ctx := context.Background()

	value, err := cat.GetSetting(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, cat.SetSetting(ctx, "key", "first"))
	require.NoError(t, cat.SetSetting(ctx, "key", "second"))

	value, err = cat.GetSetting(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}
