package controllers

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

// ErrOffline is returned for operations that need the media server while
// offline mode is on
var ErrOffline = errors.New("offline mode is on")

// Catalog lists media items
type Catalog interface {
	Items(ctx context.Context, q jellyfin.ItemsQuery) (*jellyfin.ItemsResult, error)
}

// onlineCatalog asks the server and remembers what it saw for later
// offline use
type onlineCatalog struct {
	client *jellyfin.Client
	cache  *models.CatalogStore
	logger *logrus.Logger
}

func (c *onlineCatalog) Items(ctx context.Context, q jellyfin.ItemsQuery) (*jellyfin.ItemsResult, error) {
	result, err := c.client.GetItems(ctx, q)
	if err != nil {
		return nil, err
	}

	if len(result.Items) > 0 {
		items := make([]models.CatalogItem, 0, len(result.Items))
		for _, item := range result.Items {
			items = append(items, toCatalogItem(item))
		}
		added, err := c.cache.Merge(items)
		if err != nil {
			c.logger.WithError(err).Warn("Failed to cache catalog items")
		} else if added > 0 {
			c.logger.WithField("added", added).Debug("Cached catalog items for offline use")
		}
	}

	return result, nil
}

// offlineCatalog serves the cached items with local filtering, sorting and
// paging
type offlineCatalog struct {
	cache *models.CatalogStore
}

func (c *offlineCatalog) Items(_ context.Context, q jellyfin.ItemsQuery) (*jellyfin.ItemsResult, error) {
	q = q.WithDefaults()

	cached, err := c.cache.All()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.CatalogItem, 0, len(cached))
	for _, item := range cached {
		if q.SearchTerm == "" || matchesSearch(item.Name, q.SearchTerm) {
			matched = append(matched, item)
		}
	}

	sortCatalog(matched, q.SortBy, q.SortOrder == "Descending")

	total := len(matched)
	start := q.StartIndex
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if q.Limit < total-start {
		end = start + q.Limit
	}

	items := make([]jellyfin.Item, 0, end-start)
	for _, item := range matched[start:end] {
		items = append(items, fromCatalogItem(item))
	}

	return &jellyfin.ItemsResult{Items: items, TotalRecordCount: total}, nil
}

// fold case-folds s. Casers keep state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// matchesSearch reports whether name contains term, ignoring case, or has
// a word within a small edit distance of it
func matchesSearch(name, term string) bool {
	foldedName := fold(name)
	foldedTerm := fold(strings.TrimSpace(term))
	if foldedTerm == "" || strings.Contains(foldedName, foldedTerm) {
		return true
	}

	tolerance := len([]rune(foldedTerm)) / 4
	if tolerance == 0 {
		return false
	}
	for _, word := range strings.Fields(foldedName) {
		if levenshtein.ComputeDistance(word, foldedTerm) <= tolerance {
			return true
		}
	}
	return false
}

func sortCatalog(items []*models.CatalogItem, sortBy string, descending bool) {
	less := func(a, b *models.CatalogItem) bool {
		switch sortBy {
		case "ProductionYear":
			return a.ProductionYear < b.ProductionYear
		case "CommunityRating":
			return a.CommunityRating < b.CommunityRating
		case "DateCreated":
			return a.DateCreated.Before(b.DateCreated)
		case "Name":
			return fold(a.Name) < fold(b.Name)
		default:
			return fold(sortKey(a)) < fold(sortKey(b))
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		if descending {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})
}

func sortKey(item *models.CatalogItem) string {
	if item.SortName != "" {
		return item.SortName
	}
	return item.Name
}

func toCatalogItem(item jellyfin.Item) models.CatalogItem {
	cached := models.CatalogItem{
		ID:              item.ID,
		Name:            item.Name,
		SortName:        item.SortName,
		Type:            item.Type,
		Overview:        item.Overview,
		ProductionYear:  item.ProductionYear,
		CommunityRating: item.CommunityRating,
		DateCreated:     item.DateCreated,
	}
	if len(item.MediaSources) > 0 {
		cached.MediaSourceID = item.MediaSources[0].ID
	}
	return cached
}

func fromCatalogItem(item *models.CatalogItem) jellyfin.Item {
	out := jellyfin.Item{
		ID:              item.ID,
		Name:            item.Name,
		SortName:        item.SortName,
		Type:            item.Type,
		Overview:        item.Overview,
		ProductionYear:  item.ProductionYear,
		CommunityRating: item.CommunityRating,
		DateCreated:     item.DateCreated,
	}
	if item.MediaSourceID != "" {
		out.MediaSources = []jellyfin.MediaSource{{ID: item.MediaSourceID}}
	}
	return out
}

// LibraryController browses the catalog through whichever source the
// current connectivity allows
type LibraryController struct {
	client       *jellyfin.Client
	cache        *models.CatalogStore
	online       Catalog
	offline      Catalog
	connectivity *ConnectivityState
	logger       *logrus.Logger
}

// NewLibraryController creates a new library controller
func NewLibraryController(db *models.Database, client *jellyfin.Client, connectivity *ConnectivityState, logger *logrus.Logger) *LibraryController {
	return &LibraryController{
		client:       client,
		cache:        db.Catalog,
		online:       &onlineCatalog{client: client, cache: db.Catalog, logger: logger},
		offline:      &offlineCatalog{cache: db.Catalog},
		connectivity: connectivity,
		logger:       logger,
	}
}

// Catalog returns the catalog for the current connectivity
func (c *LibraryController) Catalog() Catalog {
	if c.connectivity.Connectivity() == Offline {
		return c.offline
	}
	return c.online
}

// GetItems lists catalog items
func (c *LibraryController) GetItems(ctx context.Context, q jellyfin.ItemsQuery) (*jellyfin.ItemsResult, error) {
	return c.Catalog().Items(ctx, q)
}

// SetOfflineMode switches between the server and the local cache
func (c *LibraryController) SetOfflineMode(enabled bool) error {
	state := Online
	if enabled {
		state = Offline
	}
	if err := c.connectivity.Set(state); err != nil {
		return err
	}
	c.logger.WithField("state", state.String()).Info("Connectivity changed")
	return nil
}

// ItemDetails is one item with what the player needs to show and play it
type ItemDetails struct {
	Item        *jellyfin.Item      `json:"item"`
	Stream      jellyfin.StreamInfo `json:"stream"`
	Audio       []string            `json:"audio"`
	Subtitles   []string            `json:"subtitles"`
	ImageURL    string              `json:"imageUrl"`
	StreamURL   string              `json:"streamUrl"`
	DownloadURL string              `json:"downloadUrl"`
}

// GetItemDetails describes itemID. Offline, only what the catalog cache
// holds is returned; nil means the item was never seen.
func (c *LibraryController) GetItemDetails(ctx context.Context, itemID string) (*ItemDetails, error) {
	var item *jellyfin.Item
	if c.connectivity.Connectivity() == Offline {
		cached, err := c.cache.Get(itemID)
		if err != nil || cached == nil {
			return nil, err
		}
		converted := fromCatalogItem(cached)
		item = &converted
	} else {
		fetched, err := c.client.GetItemInfo(ctx, itemID)
		if err != nil {
			return nil, err
		}
		item = fetched
	}

	details := &ItemDetails{
		Item:        item,
		Audio:       []string{},
		Subtitles:   []string{},
		ImageURL:    c.client.ImageURL(item.ID, "", 0),
		DownloadURL: c.client.DownloadURL(item.ID),
	}
	if len(item.MediaSources) == 0 {
		details.Stream = jellyfin.GetStreamInfo(nil)
		details.StreamURL = c.client.StreamURL(item.ID, "")
		return details, nil
	}

	source := &item.MediaSources[0]
	details.Stream = jellyfin.GetStreamInfo(source)
	details.StreamURL = c.client.StreamURL(item.ID, source.ID)
	for _, stream := range source.MediaStreams {
		switch stream.Type {
		case "Audio":
			details.Audio = append(details.Audio, jellyfin.FormatAudioInfo(stream))
		case "Subtitle":
			details.Subtitles = append(details.Subtitles, jellyfin.FormatSubtitleInfo(stream))
		}
	}
	return details, nil
}

// SetFavorite adds or removes itemID from the user's favorites
func (c *LibraryController) SetFavorite(ctx context.Context, itemID string, favorite bool) error {
	if c.connectivity.Connectivity() == Offline {
		return ErrOffline
	}
	return c.client.MarkFavorite(ctx, itemID, favorite)
}

// SetWatched marks itemID as played or unplayed
func (c *LibraryController) SetWatched(ctx context.Context, itemID string, watched bool) error {
	if c.connectivity.Connectivity() == Offline {
		return ErrOffline
	}
	return c.client.MarkWatched(ctx, itemID, watched)
}
