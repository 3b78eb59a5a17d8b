// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal tracks duplicate scans by table and status
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scan",
			Name:      "scans_total",
			Help:      "Total number of duplicate scans by status",
		},
		[]string{"table", "status"},
	)

	// ScanDuration tracks how long a scan takes end to end
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "scan",
			Name:      "duration_seconds",
			Help:      "Duration of duplicate scans in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"table"},
	)

	// CandidatesFound tracks candidate pairs by tier
	CandidatesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "scan",
			Name:      "candidates_total",
			Help:      "Total number of duplicate candidates found by tier",
		},
		[]string{"table", "tier"},
	)

	// MergeOutcomes tracks batch merge outcomes by status
	MergeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "merge",
			Name:      "groups_total",
			Help:      "Total number of merge groups processed by outcome",
		},
		[]string{"table", "status"},
	)

	// UnmergeOutcomes tracks unmerge outcomes by status
	UnmergeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "unmerge",
			Name:      "requests_total",
			Help:      "Total number of unmerge requests processed by outcome",
		},
		[]string{"table", "status"},
	)

	// MalformedHistories tracks history fields that could not be parsed
	MalformedHistories = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "history",
			Name:      "malformed_total",
			Help:      "Total number of history fields treated as empty because they could not be parsed",
		},
		[]string{"table"},
	)

	// HTTPRequestsTotal tracks inbound API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	// HTTPRequestDuration tracks inbound API request duration
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of API requests in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route"},
	)
)
