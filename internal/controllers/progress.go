package controllers

import (
	"fmt"
	"time"

	"github.com/amaumene/jellyoff/internal/models"
	"github.com/sirupsen/logrus"
)

// completedRatio is the share of the duration past which an item counts
// as watched
const completedRatio = 0.9

// ProgressController records playback positions
type ProgressController struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewProgressController creates a new progress controller
func NewProgressController(db *models.Database, logger *logrus.Logger) *ProgressController {
	return &ProgressController{
		db:     db,
		logger: logger,
	}
}

// UpdateProgress overwrites the progress of mediaID. The record becomes
// unsynced again. Out-of-range positions are stored as given.
func (c *ProgressController) UpdateProgress(mediaID string, position, duration float64) (*models.ProgressRecord, error) {
	if mediaID == "" {
		return nil, fmt.Errorf("%w: mediaId is required", ErrInvalidRequest)
	}

	record := &models.ProgressRecord{
		MediaID:     mediaID,
		Position:    position,
		Duration:    duration,
		LastUpdated: time.Now().UTC(),
		Synced:      false,
		Completed:   duration > 0 && position >= completedRatio*duration,
	}
	if err := c.db.Progress.Set(record); err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"media_id": mediaID,
		"position": position,
		"duration": duration,
	}).Debug("Progress updated")
	return record, nil
}

// GetProgress returns the progress of mediaID, or nil when none is stored
func (c *ProgressController) GetProgress(mediaID string) (*models.ProgressRecord, error) {
	return c.db.Progress.Get(mediaID)
}
