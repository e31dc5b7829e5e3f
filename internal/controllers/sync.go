package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/jellyoff/internal/metrics"
	"github.com/amaumene/jellyoff/internal/models"
	"github.com/amaumene/jellyoff/internal/services/jellyfin"
	"github.com/sirupsen/logrus"
)

// ProgressReconciler pushes one local progress record to the remote side
type ProgressReconciler interface {
	ReconcileProgress(ctx context.Context, record *models.ProgressRecord) error
}

// NoopReconciler accepts every record without contacting anything
type NoopReconciler struct{}

// ReconcileProgress does nothing
func (NoopReconciler) ReconcileProgress(context.Context, *models.ProgressRecord) error {
	return nil
}

// ServerReconciler reports progress to the media server
type ServerReconciler struct {
	client *jellyfin.Client
}

// NewServerReconciler creates a reconciler backed by client
func NewServerReconciler(client *jellyfin.Client) *ServerReconciler {
	return &ServerReconciler{client: client}
}

// ReconcileProgress reports the record's position. The local record is
// the newer one by construction, so the server value is overwritten.
func (r *ServerReconciler) ReconcileProgress(ctx context.Context, record *models.ProgressRecord) error {
	return r.client.ReportProgress(ctx, record.MediaID, record.Position)
}

// SyncResult summarizes one sync pass
type SyncResult struct {
	Offline bool `json:"offline"`
	Synced  int  `json:"synced"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"` // rewritten while the pass was running
}

// SyncController runs sync passes over unsynced progress records
type SyncController struct {
	db           *models.Database
	reconciler   ProgressReconciler
	connectivity ConnectivitySource
	logger       *logrus.Logger
}

// NewSyncController creates a new sync controller
func NewSyncController(db *models.Database, reconciler ProgressReconciler, connectivity ConnectivitySource, logger *logrus.Logger) *SyncController {
	if reconciler == nil {
		reconciler = NoopReconciler{}
	}
	return &SyncController{
		db:           db,
		reconciler:   reconciler,
		connectivity: connectivity,
		logger:       logger,
	}
}

// SyncUnsynced reconciles every unsynced record and marks it synced.
// A record rewritten after the pass listed it keeps its newer value and
// stays unsynced. Failures are counted, not retried.
func (c *SyncController) SyncUnsynced(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{}

	if c.connectivity != nil && c.connectivity.Connectivity() == Offline {
		c.logger.Debug("Offline, skipping progress sync")
		result.Offline = true
		return result, nil
	}

	records, err := c.db.Progress.ListUnsynced()
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced progress: %w", err)
	}

	c.logger.WithField("count", len(records)).Info("Starting progress sync")

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		log := c.logger.WithField("media_id", record.MediaID)

		if err := c.reconciler.ReconcileProgress(ctx, record); err != nil {
			log.WithError(err).Warn("Failed to sync progress")
			metrics.ProgressSyncTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}

		marked, err := c.db.Progress.MarkSynced(record.MediaID, record.LastUpdated)
		if err != nil {
			log.WithError(err).Error("Failed to mark progress synced")
			metrics.ProgressSyncTotal.WithLabelValues("failed").Inc()
			result.Failed++
			continue
		}
		if !marked {
			log.Debug("Progress changed during sync, leaving it for the next pass")
			metrics.ProgressSyncTotal.WithLabelValues("skipped").Inc()
			result.Skipped++
			continue
		}

		metrics.ProgressSyncTotal.WithLabelValues("synced").Inc()
		result.Synced++
	}

	now := time.Now().UTC()
	if _, err := c.db.Settings.Update(func(s *models.Settings) { s.LastSyncTime = &now }); err != nil {
		c.logger.WithError(err).Warn("Failed to record last sync time")
	}

	c.logger.WithFields(logrus.Fields{
		"synced":  result.Synced,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	}).Info("Progress sync completed")

	return result, nil
}
