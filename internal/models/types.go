package models

import "time"

// MediaRecord is the local metadata for one completed download
type MediaRecord struct {
	ID           string    `json:"id" boltholdKey:"ID"` // Catalog item id
	Title        string    `json:"title"`
	Path         string    `json:"path"` // Absolute path of the downloaded file
	DownloadedAt time.Time `json:"downloadedAt"`
	Size         int64     `json:"size"` // Content-Length reported at download time
}

// ProgressRecord is the stored playback position for one media item.
// Position <= Duration is expected but not enforced.
type ProgressRecord struct {
	MediaID     string    `json:"mediaId" boltholdKey:"MediaID"`
	Position    float64   `json:"position"` // seconds
	Duration    float64   `json:"duration"` // seconds
	LastUpdated time.Time `json:"lastUpdated"`
	Synced      bool      `json:"synced" boltholdIndex:"Synced"`
	Completed   bool      `json:"completed,omitempty"`
}

// Settings is the single settings record
type Settings struct {
	DownloadPath string `json:"downloadPath"`
	ServerURL    string `json:"serverUrl"`

	// Session
	AccessToken string `json:"accessToken,omitempty"`
	UserID      string `json:"userId,omitempty"`
	DeviceID    string `json:"deviceId,omitempty"`

	// Connectivity
	OfflineMode  bool       `json:"offlineMode"`
	LastSyncTime *time.Time `json:"lastSyncTime,omitempty"`
}

// CatalogItem is a cached copy of a remote catalog item used for offline browsing
type CatalogItem struct {
	ID              string    `json:"Id" boltholdKey:"ID"`
	Name            string    `json:"Name"`
	SortName        string    `json:"SortName,omitempty"`
	Type            string    `json:"Type,omitempty"`
	Overview        string    `json:"Overview,omitempty"`
	ProductionYear  int       `json:"ProductionYear,omitempty"`
	CommunityRating float64   `json:"CommunityRating,omitempty"`
	DateCreated     time.Time `json:"DateCreated,omitempty"`
	MediaSourceID   string    `json:"MediaSourceId,omitempty"`
}
