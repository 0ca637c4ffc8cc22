// Package metrics holds the Prometheus collectors shared by the server and CLI.
// Labels stay low-cardinality: no movie ids, no session ids.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatalogFetchTotal counts gateway calls by operation and outcome (ok, not_found, error).
	CatalogFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstream_catalog_fetch_total",
		Help: "Movie API fetches by operation and outcome.",
	}, []string{"op", "outcome"})

	// CatalogRetryTotal counts backoff retries against the movie API.
	CatalogRetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstream_catalog_retry_total",
		Help: "Movie API request retries by operation.",
	}, []string{"op"})

	// CatalogCacheTotal counts response cache lookups (hit, miss).
	CatalogCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstream_catalog_cache_total",
		Help: "Movie API response cache lookups by result.",
	}, []string{"result"})

	// QualitySwitchTotal counts switch attempts by outcome (switched, fallback, errored, rejected, queued).
	QualitySwitchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstream_quality_switch_total",
		Help: "Quality switch attempts by outcome.",
	}, []string{"outcome"})

	// PlaybackErrorTotal counts media errors by kind (decode, network, autoplay, environment).
	PlaybackErrorTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstream_playback_error_total",
		Help: "Playback errors reported by the media environment.",
	}, []string{"kind"})

	// LatestUpdateTotal counts latest-shelf edits by action and outcome.
	LatestUpdateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstream_latest_update_total",
		Help: "Latest shelf edits by action and outcome.",
	}, []string{"action", "outcome"})

	// SourceCheckTotal counts source sweep probes by quality and outcome (up, down, error).
	SourceCheckTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelstream_source_check_total",
		Help: "Video source reachability probes by quality and outcome.",
	}, []string{"quality", "outcome"})
)
