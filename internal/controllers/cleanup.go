package controllers

import (
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/sirupsen/logrus"
)

// CleanupController drops media records whose files disappeared from disk
type CleanupController struct {
	db        *models.Database
	downloads *DownloadController
	logger    *logrus.Logger
}

// NewCleanupController creates a new cleanup controller
func NewCleanupController(db *models.Database, downloads *DownloadController, logger *logrus.Logger) *CleanupController {
	return &CleanupController{
		db:        db,
		downloads: downloads,
		logger:    logger,
	}
}

// VerifyDownloads checks every media record against the filesystem and
// purges the stale ones. Returns how many were purged.
func (c *CleanupController) VerifyDownloads() (int, error) {
	c.logger.Debug("Verifying downloaded files")

	records, err := c.db.Media.List()
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, record := range records {
		present, err := c.downloads.verifyRecord(record)
		if err != nil {
			c.logger.WithError(err).WithField("media_id", record.ID).Warn("Failed to verify download")
			continue
		}
		if !present {
			purged++
		}
	}

	if purged > 0 {
		c.logger.WithFields(logrus.Fields{
			"checked": len(records),
			"purged":  purged,
		}).Info("Purged stale download records")
	}
	return purged, nil
}
