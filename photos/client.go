// Package photos is a thin client for the remote photo library API. Retries
// and token refresh live here; the reconciliation engines only depend on the
// response shape contract (pagination tokens, per-element batch failures).
package photos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const defaultBaseURL = "https://photoslibrary.googleapis.com/v1"

// retryStatuses are the transient response codes worth retrying.
// https://cloud.google.com/apis/design/errors
var retryStatuses = map[int]bool{
	http.StatusConflict:            true,
	http.StatusTooManyRequests:     true,
	499:                            true, // client closed request
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

const (
	maxRetries       = 5
	maxAuthRetries   = 3
	retryBackoffUnit = 3 * time.Second
)

// ErrMalformedPage is returned when a listing page carries neither items nor
// a next page token.
var ErrMalformedPage = errors.New("malformed listing page")

// Authenticator provides bearer tokens for API calls. Invoking Refresh when a
// token is rejected must obtain a fresh one.
type Authenticator interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// Client talks to the remote photo library API.
type Client struct {
	baseURL string
	auth    Authenticator
	client  *http.Client
	log     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// New creates a new remote library client.
func New(auth Authenticator, logger *log.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		auth:    auth,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logger.With("component", "photos"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListMediaItems returns one page of the full media item listing. A nil page
// without error means the listing is exhausted.
func (c *Client) ListMediaItems(ctx context.Context, pageToken string, pageSize int) (*MediaItemsPage, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	body, err := c.call(ctx, http.MethodGet, "mediaItems", params, nil)
	if err != nil {
		return nil, err
	}
	if emptyObject(body) {
		return nil, nil
	}

	var page MediaItemsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode media items page: %w", err)
	}
	if len(page.MediaItems) == 0 {
		return nil, fmt.Errorf("%w: mediaItems response contains no media items", ErrMalformedPage)
	}
	return &page, nil
}

// SearchMediaItems returns one page of a filtered media item search. A nil
// page without error means the search is exhausted.
func (c *Client) SearchMediaItems(ctx context.Context, params SearchParams) (*MediaItemsPage, error) {
	body, err := c.call(ctx, http.MethodPost, "mediaItems:search", nil, params)
	if err != nil {
		return nil, err
	}
	if emptyObject(body) {
		return nil, nil
	}

	var page MediaItemsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode media items search page: %w", err)
	}
	if len(page.MediaItems) == 0 {
		return nil, fmt.Errorf("%w: mediaItems:search response contains no media items", ErrMalformedPage)
	}
	return &page, nil
}

// BatchGetMediaItems resolves up to 50 remote IDs into per-ID results, each
// either full metadata or an error status. A failing element never fails the
// batch.
func (c *Client) BatchGetMediaItems(ctx context.Context, remoteIDs []string) ([]MediaItemResult, error) {
	if len(remoteIDs) == 0 {
		return nil, errors.New("no remote ids provided")
	}

	params := url.Values{}
	for _, id := range remoteIDs {
		params.Add("mediaItemIds", id)
	}

	body, err := c.call(ctx, http.MethodGet, "mediaItems:batchGet", params, nil)
	if err != nil {
		return nil, err
	}

	var resp struct {
		MediaItemResults []MediaItemResult `json:"mediaItemResults"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode batch get response: %w", err)
	}
	if len(resp.MediaItemResults) == 0 {
		return nil, errors.New("mediaItems:batchGet response contains no results")
	}
	return resp.MediaItemResults, nil
}

// ListAlbums returns one page of the album listing. A nil page without error
// means the listing is exhausted.
func (c *Client) ListAlbums(ctx context.Context, pageToken string, pageSize int) (*AlbumsPage, error) {
	params := url.Values{}
	params.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	body, err := c.call(ctx, http.MethodGet, "albums", params, nil)
	if err != nil {
		return nil, err
	}
	if emptyObject(body) {
		return nil, nil
	}

	var page AlbumsPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode albums page: %w", err)
	}
	if len(page.Albums) == 0 {
		return nil, fmt.Errorf("%w: albums response contains no albums", ErrMalformedPage)
	}
	return &page, nil
}

// FormatDate converts a YYYY-MM-DD string into an API date.
func FormatDate(date string) (Date, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q, must be YYYY-MM-DD: %w", date, err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

func (c *Client) call(ctx context.Context, method, endpoint string, params url.Values, payload any) ([]byte, error) {
	u := c.baseURL + "/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	authRetries := 0
	for attempt := 0; ; attempt++ {
		body, status, err := c.do(ctx, method, u, reqBody)
		if err != nil {
			return nil, err
		}

		switch {
		case status == http.StatusOK:
			return body, nil

		case status == http.StatusUnauthorized:
			if authRetries >= maxAuthRetries {
				return nil, fmt.Errorf("api call to %s failed: token rejected after %d refreshes", endpoint, authRetries)
			}
			authRetries++
			c.log.Debug("access token rejected, refreshing", "endpoint", endpoint, "retry", authRetries)
			if err := c.auth.Refresh(ctx); err != nil {
				return nil, fmt.Errorf("failed to refresh token: %w", err)
			}

		case retryStatuses[status]:
			if attempt >= maxRetries {
				return nil, fmt.Errorf("api call to %s failed with status %d after %d retries", endpoint, status, attempt)
			}
			wait := retryBackoffUnit * time.Duration(attempt+1)
			c.log.Debug("transient api error, backing off", "endpoint", endpoint, "status", status, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

		default:
			return nil, apiError(endpoint, status, body)
		}
	}
}

func (c *Client) do(ctx context.Context, method, u string, reqBody []byte) ([]byte, int, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.auth.AccessToken(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get access token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("api call failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func apiError(endpoint string, status int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Errorf("api call to %s failed: %s", endpoint, errResp.Error.Message)
	}
	return fmt.Errorf("api call to %s failed with status %d", endpoint, status)
}

func emptyObject(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("{}"))
}
