package jellyfin

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const itemFields = "Overview,CommunityRating,CriticRating,DateCreated,PremiereDate,ProductionYear,Path,MediaSources"

const itemInfoFields = "Overview,Genres,Studios,People,MediaStreams,MediaSources,UserData"

// ticksPerSecond converts seconds to the server's 100ns ticks
const ticksPerSecond = 10_000_000

// MediaStream describes one video, audio or subtitle stream
type MediaStream struct {
	Type           string  `json:"Type"`
	Codec          string  `json:"Codec,omitempty"`
	Language       string  `json:"Language,omitempty"`
	Profile        string  `json:"Profile,omitempty"`
	Width          int     `json:"Width,omitempty"`
	Height         int     `json:"Height,omitempty"`
	BitRate        int64   `json:"BitRate,omitempty"`
	Channels       int     `json:"Channels,omitempty"`
	RealFrameRate  float64 `json:"RealFrameRate,omitempty"`
	VideoRangeType string  `json:"VideoRangeType,omitempty"`
	ColorPrimaries string  `json:"ColorPrimaries,omitempty"`
	ColorTransfer  string  `json:"ColorTransfer,omitempty"`
	VideoDoViTitle string  `json:"VideoDoViTitle,omitempty"`
	IsForced       bool    `json:"IsForced,omitempty"`
	IsDefault      bool    `json:"IsDefault,omitempty"`
}

// MediaSource is one playable version of an item
type MediaSource struct {
	ID           string        `json:"Id"`
	Path         string        `json:"Path,omitempty"`
	Container    string        `json:"Container,omitempty"`
	Size         int64         `json:"Size,omitempty"`
	MediaStreams []MediaStream `json:"MediaStreams,omitempty"`
}

// UserData is the per-user state of an item
type UserData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
	Played                bool  `json:"Played"`
	IsFavorite            bool  `json:"IsFavorite"`
}

// Item is a catalog entry
type Item struct {
	ID              string        `json:"Id"`
	Name            string        `json:"Name"`
	SortName        string        `json:"SortName,omitempty"`
	Type            string        `json:"Type,omitempty"`
	Overview        string        `json:"Overview,omitempty"`
	ProductionYear  int           `json:"ProductionYear,omitempty"`
	CommunityRating float64       `json:"CommunityRating,omitempty"`
	DateCreated     time.Time     `json:"DateCreated,omitempty"`
	RunTimeTicks    int64         `json:"RunTimeTicks,omitempty"`
	MediaSources    []MediaSource `json:"MediaSources,omitempty"`
	UserData        *UserData     `json:"UserData,omitempty"`
}

// ItemsQuery filters and pages a catalog listing
type ItemsQuery struct {
	SearchTerm       string
	SortBy           string // default SortName
	SortOrder        string // Ascending or Descending
	IncludeItemTypes string // default Movie
	StartIndex       int
	Limit            int // default 50
}

// ItemsResult is one page of catalog items
type ItemsResult struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// WithDefaults fills the unset fields of q
func (q ItemsQuery) WithDefaults() ItemsQuery {
	if q.SortBy == "" {
		q.SortBy = "SortName"
	}
	if q.SortOrder == "" {
		q.SortOrder = "Ascending"
	}
	if q.IncludeItemTypes == "" {
		q.IncludeItemTypes = "Movie"
	}
	if q.Limit <= 0 {
		q.Limit = 50
	}
	return q
}

// GetItems lists catalog items
func (c *Client) GetItems(ctx context.Context, q ItemsQuery) (*ItemsResult, error) {
	if !c.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	q = q.WithDefaults()
	params := url.Values{}
	params.Set("SortBy", q.SortBy)
	params.Set("SortOrder", q.SortOrder)
	params.Set("IncludeItemTypes", q.IncludeItemTypes)
	params.Set("Recursive", "true")
	params.Set("Fields", itemFields)
	params.Set("StartIndex", strconv.Itoa(q.StartIndex))
	params.Set("Limit", strconv.Itoa(q.Limit))
	if q.SearchTerm != "" {
		params.Set("SearchTerm", q.SearchTerm)
	}
	if userID := c.UserID(); userID != "" {
		params.Set("UserId", userID)
	}

	var result ItemsResult
	if err := c.doRequest(ctx, http.MethodGet, "/Items", params, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to fetch media items: %w", err)
	}
	return &result, nil
}

// GetItemInfo returns the details of one item. Answers are cached for a
// few minutes.
func (c *Client) GetItemInfo(ctx context.Context, itemID string) (*Item, error) {
	if cached, ok := c.itemCache.Get(itemID); ok {
		return cached.(*Item), nil
	}

	params := url.Values{"Fields": {itemInfoFields}}
	if userID := c.UserID(); userID != "" {
		params.Set("UserId", userID)
	}

	var item Item
	if err := c.doRequest(ctx, http.MethodGet, "/Items/"+url.PathEscape(itemID), params, nil, &item); err != nil {
		return nil, fmt.Errorf("failed to load item details: %w", err)
	}

	c.itemCache.SetDefault(itemID, &item)
	return &item, nil
}

// MarkFavorite adds or removes itemID from the user's favorites
func (c *Client) MarkFavorite(ctx context.Context, itemID string, favorite bool) error {
	return c.toggleUserItem(ctx, "FavoriteItems", itemID, favorite)
}

// MarkWatched marks itemID as played or unplayed
func (c *Client) MarkWatched(ctx context.Context, itemID string, watched bool) error {
	return c.toggleUserItem(ctx, "PlayedItems", itemID, watched)
}

func (c *Client) toggleUserItem(ctx context.Context, collection, itemID string, on bool) error {
	userID := c.UserID()
	if !c.IsAuthenticated() || userID == "" {
		return ErrNotAuthenticated
	}

	method := http.MethodPost
	if !on {
		method = http.MethodDelete
	}

	path := fmt.Sprintf("/Users/%s/%s/%s", url.PathEscape(userID), collection, url.PathEscape(itemID))
	if err := c.doRequest(ctx, method, path, nil, nil, nil); err != nil {
		return fmt.Errorf("failed to update %s for %s: %w", collection, itemID, err)
	}

	c.itemCache.Delete(itemID)
	return nil
}

// ReportProgress tells the server the playback position of itemID
func (c *Client) ReportProgress(ctx context.Context, itemID string, positionSeconds float64) error {
	if !c.IsAuthenticated() {
		return ErrNotAuthenticated
	}

	body := map[string]interface{}{
		"ItemId":        itemID,
		"PositionTicks": int64(positionSeconds * ticksPerSecond),
		"IsPaused":      true,
	}
	if err := c.doRequest(ctx, http.MethodPost, "/Sessions/Playing/Progress", nil, body, nil); err != nil {
		return fmt.Errorf("failed to report progress for %s: %w", itemID, err)
	}
	return nil
}

// ImageURL returns the URL of an item image
func (c *Client) ImageURL(itemID, imageType string, maxHeight int) string {
	if imageType == "" {
		imageType = "Primary"
	}
	if maxHeight <= 0 {
		maxHeight = 300
	}
	return fmt.Sprintf("%s/Items/%s/Images/%s?maxHeight=%d&quality=90", c.ServerURL(), url.PathEscape(itemID), imageType, maxHeight)
}

// StreamURL returns the direct-play URL of a media source
func (c *Client) StreamURL(itemID, mediaSourceID string) string {
	params := url.Values{"static": {"true"}}
	if mediaSourceID != "" {
		params.Set("mediaSourceId", mediaSourceID)
	}
	return fmt.Sprintf("%s/Videos/%s/stream.mp4?%s", c.ServerURL(), url.PathEscape(itemID), params.Encode())
}

// DownloadURL returns the URL serving the original file of itemID
func (c *Client) DownloadURL(itemID string) string {
	return fmt.Sprintf("%s/Items/%s/Download", c.ServerURL(), url.PathEscape(itemID))
}
