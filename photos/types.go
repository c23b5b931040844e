package photos

// MediaItemsPage is one page of a media item listing or search.
type MediaItemsPage struct {
	MediaItems    []MediaItem `json:"mediaItems"`
	NextPageToken string      `json:"nextPageToken"`
}

// AlbumsPage is one page of an album listing.
type AlbumsPage struct {
	Albums        []Album `json:"albums"`
	NextPageToken string  `json:"nextPageToken"`
}

// MediaItem is a single remote media item as returned by the library API.
type MediaItem struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	// BaseURL is a time-limited download URL. Fetching original bytes requires
	// a "=d" suffix ("=dv" for videos).
	BaseURL       string        `json:"baseUrl"`
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

// MediaMetadata carries the remote metadata of a media item.
type MediaMetadata struct {
	CreationTime string         `json:"creationTime"`
	Video        *VideoMetadata `json:"video,omitempty"`
}

// VideoMetadata carries the processing state of a video. Downloads are only
// possible once Status is "READY".
type VideoMetadata struct {
	Status string `json:"status"`
}

// Ready reports whether the video has finished remote processing.
func (v *VideoMetadata) Ready() bool {
	return v != nil && v.Status == "READY"
}

// Album is a single remote album.
type Album struct {
	ID                    string `json:"id"`
	Title                 string `json:"title"`
	MediaItemsCount       string `json:"mediaItemsCount"`
	CoverPhotoMediaItemID string `json:"coverPhotoMediaItemId"`
}

// MediaItemResult is one element of a batch get reply. Exactly one of
// MediaItem and Status is set: per-element failure is expected and does not
// abort the batch.
type MediaItemResult struct {
	MediaItem *MediaItem `json:"mediaItem,omitempty"`
	Status    *Status    `json:"status,omitempty"`
}

// Status is the error detail of a failed batch get element.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Date is a calendar date used in search filters.
type Date struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// DateRange is an inclusive date range filter.
type DateRange struct {
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
}

// SearchFilters narrows a media item search.
type SearchFilters struct {
	DateFilter      *DateFilter      `json:"dateFilter,omitempty"`
	MediaTypeFilter *MediaTypeFilter `json:"mediaTypeFilter,omitempty"`
}

// DateFilter restricts results to the given date ranges.
type DateFilter struct {
	Ranges []DateRange `json:"ranges"`
}

// MediaTypeFilter restricts results to the given media types.
type MediaTypeFilter struct {
	MediaTypes []string `json:"mediaTypes"`
}

// SearchParams are the parameters of a media item search.
type SearchParams struct {
	AlbumID   string         `json:"albumId,omitempty"`
	PageSize  int            `json:"pageSize,omitempty"`
	PageToken string         `json:"pageToken,omitempty"`
	Filters   *SearchFilters `json:"filters,omitempty"`
	OrderBy   string         `json:"orderBy,omitempty"`
}
