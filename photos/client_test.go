package photos

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	token     string
	refreshes int
}

func (a *fakeAuth) AccessToken(_ context.Context) (string, error) { return a.token, nil }

func (a *fakeAuth) Refresh(_ context.Context) error {
	a.refreshes++
	a.token = "refreshed"
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeAuth) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	auth := &fakeAuth{token: "initial"}
	return New(auth, log.New(io.Discard), WithBaseURL(srv.URL)), auth
}

func TestClient_ListMediaItems_Pagination(t *testing.T) {
	pages := map[string]MediaItemsPage{
		"": {
			MediaItems: []MediaItem{
				{ID: "a", Filename: "a.jpg"},
				{ID: "b", Filename: "b.jpg"},
			},
			NextPageToken: "page2",
		},
		"page2": {
			MediaItems: []MediaItem{{ID: "c", Filename: "c.jpg"}},
		},
	}

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mediaItems", r.URL.Path)
		assert.Equal(t, "Bearer initial", r.Header.Get("Authorization"))
		require.NoError(t, json.NewEncoder(w).Encode(pages[r.URL.Query().Get("pageToken")]))
	})

	page, err := client.ListMediaItems(context.Background(), "", 100)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Len(t, page.MediaItems, 2)
	assert.Equal(t, "page2", page.NextPageToken)

	page, err = client.ListMediaItems(context.Background(), page.NextPageToken, 100)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Len(t, page.MediaItems, 1)
	assert.Empty(t, page.NextPageToken)
}

func TestClient_ListMediaItems_Exhausted(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("{}")) //nolint:errcheck
	})

	page, err := client.ListMediaItems(context.Background(), "", 100)
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestClient_ListMediaItems_MalformedPage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"nextPageToken":"page2"}`)) //nolint:errcheck
	})

	_, err := client.ListMediaItems(context.Background(), "", 100)
	assert.ErrorIs(t, err, ErrMalformedPage)
}

func TestClient_SearchMediaItems_SendsParams(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mediaItems:search", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var params SearchParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "album-1", params.AlbumID)
		assert.Equal(t, 25, params.PageSize)

		require.NoError(t, json.NewEncoder(w).Encode(MediaItemsPage{
			MediaItems: []MediaItem{{ID: "a"}},
		}))
	})

	page, err := client.SearchMediaItems(context.Background(), SearchParams{AlbumID: "album-1", PageSize: 25})
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Len(t, page.MediaItems, 1)
}

func TestClient_BatchGetMediaItems_PartialFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mediaItems:batchGet", r.URL.Path)
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["mediaItemIds"])

		w.Write([]byte(`{"mediaItemResults":[` + //nolint:errcheck
			`{"mediaItem":{"id":"a","filename":"a.jpg"}},` +
			`{"status":{"code":5,"message":"not found"}}]}`))
	})

	results, err := client.BatchGetMediaItems(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NotNil(t, results[0].MediaItem)
	assert.Equal(t, "a", results[0].MediaItem.ID)
	assert.Nil(t, results[0].Status)

	assert.Nil(t, results[1].MediaItem)
	require.NotNil(t, results[1].Status)
	assert.Equal(t, "not found", results[1].Status.Message)
}

func TestClient_ListAlbums(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/albums", r.URL.Path)
		require.NoError(t, json.NewEncoder(w).Encode(AlbumsPage{
			Albums: []Album{{ID: "album-1", Title: "Trip", MediaItemsCount: "3"}},
		}))
	})

	page, err := client.ListAlbums(context.Background(), "", 50)
	require.NoError(t, err)
	require.NotNil(t, page)
	require.Len(t, page.Albums, 1)
	assert.Equal(t, "Trip", page.Albums[0].Title)
}

func TestClient_RefreshesTokenOnUnauthorized(t *testing.T) {
	var calls int
	client, auth := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer refreshed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(MediaItemsPage{
			MediaItems: []MediaItem{{ID: "a"}},
		}))
	})

	page, err := client.ListMediaItems(context.Background(), "", 100)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, 1, auth.refreshes)
	assert.Equal(t, 2, calls)
}

func TestClient_NonRetryableError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid filter"}}`)) //nolint:errcheck
	})

	_, err := client.ListMediaItems(context.Background(), "", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter")
}

func TestFormatDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Date
		wantErr bool
	}{
		{name: "valid", input: "2023-06-01", want: Date{Year: 2023, Month: 6, Day: 1}},
		{name: "open end", input: "9999-12-31", want: Date{Year: 9999, Month: 12, Day: 31}},
		{name: "invalid", input: "06/01/2023", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVideoMetadata_Ready(t *testing.T) {
	assert.False(t, (*VideoMetadata)(nil).Ready())
	assert.False(t, (&VideoMetadata{Status: "PROCESSING"}).Ready())
	assert.True(t, (&VideoMetadata{Status: "READY"}).Ready())
}
