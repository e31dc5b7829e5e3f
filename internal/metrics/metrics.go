// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DownloadsTotal counts finished downloads by result (complete, error)
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jellyoff",
		Name:      "downloads_total",
		Help:      "Finished downloads by result.",
	}, []string{"result"})

	// DownloadedBytes counts bytes written to the download directory
	DownloadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jellyoff",
		Name:      "downloaded_bytes_total",
		Help:      "Bytes written to the download directory.",
	})

	// DownloadsInFlight is the number of transfers currently running
	DownloadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "jellyoff",
		Name:      "downloads_in_flight",
		Help:      "Transfers currently running.",
	})

	// ProgressSyncTotal counts progress records handled by sync passes by result
	ProgressSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "jellyoff",
		Name:      "progress_sync_total",
		Help:      "Progress records handled by sync passes by result.",
	}, []string{"result"})

	// StaleRecordsPurged counts media records dropped because their file vanished
	StaleRecordsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "jellyoff",
		Name:      "stale_records_purged_total",
		Help:      "Media records purged because their file no longer exists.",
	})
)
