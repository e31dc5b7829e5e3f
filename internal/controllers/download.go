package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/amaumene/jellyoff/internal/metrics"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrInvalidRequest is returned for requests rejected before any I/O
var ErrInvalidRequest = errors.New("invalid request")

// eventBuffer is the capacity of a download's event channel. One slot is
// always kept free for the terminal event.
const eventBuffer = 32

// DownloadRequest asks for one remote resource to be saved locally
type DownloadRequest struct {
	SourceURL   string            `json:"sourceUrl"`
	Filename    string            `json:"filename"` // Base name inside the download directory, used verbatim
	Title       string            `json:"title,omitempty"`
	AuthHeaders map[string]string `json:"authHeaders,omitempty"`
	MediaID     string            `json:"mediaId"`
}

// Validate checks the request before anything touches disk or network
func (r DownloadRequest) Validate() error {
	if r.MediaID == "" {
		return fmt.Errorf("%w: mediaId is required", ErrInvalidRequest)
	}
	if r.Filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidRequest)
	}
	u, err := url.Parse(r.SourceURL)
	if err != nil {
		return fmt.Errorf("%w: bad sourceUrl: %v", ErrInvalidRequest, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: sourceUrl must be an absolute http or https URL", ErrInvalidRequest)
	}
	return nil
}

// DownloadEventType names the kind of a DownloadEvent
type DownloadEventType string

const (
	EventProgress DownloadEventType = "download-progress"
	EventComplete DownloadEventType = "download-complete"
	EventError    DownloadEventType = "download-error"
)

// DownloadEvent reports the state of one transfer
type DownloadEvent struct {
	Type     DownloadEventType `json:"type"`
	MediaID  string            `json:"id"`
	Received int64             `json:"received,omitempty"`
	Total    int64             `json:"total,omitempty"` // -1 when the server sent no Content-Length
	Percent  float64           `json:"percent,omitempty"`
	Path     string            `json:"path,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// StatusError is a non-2xx answer to a download request
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("download failed with status %d", e.StatusCode)
}

// Usage is the footprint of the download directory
type Usage struct {
	Size  int64 `json:"size"`
	Count int   `json:"count"`
}

// DownloadController moves remote media into the download directory and
// keeps the media record store in step with it
type DownloadController struct {
	db         *models.Database
	httpClient *http.Client
	defaultDir string
	logger     *logrus.Logger
}

// NewDownloadController creates a new download controller. defaultDir is
// used whenever the settings carry no download path.
func NewDownloadController(db *models.Database, defaultDir string, logger *logrus.Logger) *DownloadController {
	return &DownloadController{
		db:         db,
		httpClient: &http.Client{},
		defaultDir: defaultDir,
		logger:     logger,
	}
}

// StartDownload validates req and runs the transfer in the background. The
// returned channel carries progress events, then exactly one complete or
// error event, and is then closed. Progress events may be coalesced when
// the reader falls behind.
func (c *DownloadController) StartDownload(ctx context.Context, req DownloadRequest) (<-chan DownloadEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	events := make(chan DownloadEvent, eventBuffer)
	go func() {
		defer close(events)

		metrics.DownloadsInFlight.Inc()
		defer metrics.DownloadsInFlight.Dec()

		record, err := c.Download(ctx, req, func(ev DownloadEvent) {
			// single producer: the check cannot race with another send
			if len(events) < cap(events)-1 {
				events <- ev
			}
		})
		if err != nil {
			metrics.DownloadsTotal.WithLabelValues("error").Inc()
			events <- DownloadEvent{Type: EventError, MediaID: req.MediaID, Error: err.Error()}
			return
		}

		metrics.DownloadsTotal.WithLabelValues("complete").Inc()
		events <- DownloadEvent{Type: EventComplete, MediaID: record.ID, Path: record.Path}
	}()

	return events, nil
}

// Download streams req.SourceURL to the download directory, calling
// onProgress after every chunk, and records the result. On any failure the
// partial file is removed and no record is written.
func (c *DownloadController) Download(ctx context.Context, req DownloadRequest, onProgress func(DownloadEvent)) (*models.MediaRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	dir, err := c.ensureDownloadDir()
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(dir, req.Filename)

	log := c.logger.WithFields(logrus.Fields{
		"media_id": req.MediaID,
		"url":      req.SourceURL,
		"path":     dest,
	})
	log.Info("Starting download")

	file, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		c.discard(file, dest)
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for name, value := range req.AuthHeaders {
		httpReq.Header.Set(name, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.discard(file, dest)
		log.WithError(err).Error("Download request failed")
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.discard(file, dest)
		log.WithField("status", resp.StatusCode).Error("Download rejected by server")
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	total := resp.ContentLength
	received, err := c.copyWithProgress(file, resp.Body, req.MediaID, total, onProgress)
	if err != nil {
		c.discard(file, dest)
		log.WithError(err).Error("Download interrupted")
		return nil, err
	}

	if err := file.Close(); err != nil {
		c.removeFile(dest)
		return nil, fmt.Errorf("failed to flush %s: %w", dest, err)
	}

	size := total
	if size < 0 {
		size = received
	}
	title := req.Title
	if title == "" {
		title = req.Filename
	}

	record := &models.MediaRecord{
		ID:           req.MediaID,
		Title:        title,
		Path:         dest,
		DownloadedAt: time.Now(),
		Size:         size,
	}
	if err := c.db.Media.Put(record); err != nil {
		return nil, err
	}

	log.WithField("size", size).Info("Download completed")
	return record, nil
}

// copyWithProgress copies src into dst, reporting after every chunk
func (c *DownloadController) copyWithProgress(dst io.Writer, src io.Reader, mediaID string, total int64, onProgress func(DownloadEvent)) (int64, error) {
	buf := make([]byte, 32*1024)
	var received int64

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return received, fmt.Errorf("failed to write download: %w", err)
			}
			received += int64(n)
			metrics.DownloadedBytes.Add(float64(n))

			if onProgress != nil {
				ev := DownloadEvent{Type: EventProgress, MediaID: mediaID, Received: received, Total: total}
				if total > 0 {
					ev.Percent = float64(received) / float64(total) * 100
				}
				onProgress(ev)
			}
		}
		if readErr == io.EOF {
			return received, nil
		}
		if readErr != nil {
			return received, fmt.Errorf("download interrupted: %w", readErr)
		}
	}
}

// discard closes and removes a partial download
func (c *DownloadController) discard(file *os.File, path string) {
	file.Close()
	c.removeFile(path)
}

// removeFile deletes path, logging instead of failing
func (c *DownloadController) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.logger.WithError(err).WithField("path", path).Warn("Failed to remove partial download")
	}
}

// CheckDownloaded reports whether mediaID has a record whose file is still
// on disk. A record pointing at a missing file is purged.
func (c *DownloadController) CheckDownloaded(mediaID string) (bool, error) {
	record, err := c.db.Media.Get(mediaID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	return c.verifyRecord(record)
}

// verifyRecord stats the record's file and purges the record, with its
// progress, when the file is gone
func (c *DownloadController) verifyRecord(record *models.MediaRecord) (bool, error) {
	_, err := os.Stat(record.Path)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to stat %s: %w", record.Path, err)
	}

	c.logger.WithFields(logrus.Fields{
		"media_id": record.ID,
		"path":     record.Path,
	}).Info("Downloaded file is missing, purging record")

	if _, err := c.db.Media.Delete(record.ID); err != nil {
		return false, err
	}
	if err := c.db.Progress.Delete(record.ID); err != nil {
		return false, err
	}
	metrics.StaleRecordsPurged.Inc()
	return false, nil
}

// DeleteDownload removes the file, the media record and the progress record
// of mediaID. Returns false when there was no record.
func (c *DownloadController) DeleteDownload(mediaID string) (bool, error) {
	record, err := c.db.Media.Get(mediaID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	if err := os.Remove(record.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("failed to delete %s: %w", record.Path, err)
	}

	if _, err := c.db.Media.Delete(mediaID); err != nil {
		return false, err
	}
	if err := c.db.Progress.Delete(mediaID); err != nil {
		return false, err
	}

	c.logger.WithField("media_id", mediaID).Info("Download deleted")
	return true, nil
}

// ListDownloads returns every media record
func (c *DownloadController) ListDownloads() ([]*models.MediaRecord, error) {
	return c.db.Media.List()
}

// GetDownloadsUsage sums the regular files directly inside the download
// directory. It reads the filesystem, not the record store.
func (c *DownloadController) GetDownloadsUsage() (Usage, error) {
	dir, err := c.DownloadDir()
	if err != nil {
		return Usage{}, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Usage{}, nil
		}
		return Usage{}, fmt.Errorf("failed to read download directory: %w", err)
	}

	var usage Usage
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		usage.Size += info.Size()
		usage.Count++
	}
	return usage, nil
}

// ClearAllDownloads deletes every regular file directly inside the download
// directory and empties the media record store. Progress records are kept.
func (c *DownloadController) ClearAllDownloads() error {
	dir, err := c.DownloadDir()
	if err != nil {
		return err
	}

	var errs []error
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read download directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			c.logger.WithError(err).WithField("path", path).Warn("Failed to remove download")
			errs = append(errs, err)
		}
	}

	if err := c.db.Media.Clear(); err != nil {
		return err
	}

	c.logger.WithField("files", len(entries)).Info("Cleared all downloads")
	return errors.Join(errs...)
}

// DownloadDir returns the effective download directory
func (c *DownloadController) DownloadDir() (string, error) {
	settings, err := c.db.Settings.Get()
	if err != nil {
		return "", err
	}
	if settings.DownloadPath != "" {
		return settings.DownloadPath, nil
	}
	return c.defaultDir, nil
}

// SetDownloadPath stores path as the download directory, creating it
func (c *DownloadController) SetDownloadPath(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("%w: download path must be absolute", ErrInvalidRequest)
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	if _, err := c.db.Settings.Update(func(s *models.Settings) { s.DownloadPath = path }); err != nil {
		return err
	}

	c.logger.WithField("path", path).Info("Download path updated")
	return nil
}

func (c *DownloadController) ensureDownloadDir() (string, error) {
	dir, err := c.DownloadDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	return dir, nil
}
