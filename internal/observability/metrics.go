// Package observability exposes the pipeline's Prometheus metrics.
package observability

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var projectLabel atomic.Value

func init() {
	projectLabel.Store("default")
}

func SetProject(name string) {
	if name == "" {
		name = "default"
	}
	projectLabel.Store(name)
}

func getProject() string {
	if v := projectLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "default"
}

var (
	featuresReadTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geodraft_features_read_total",
			Help: "Features produced by source readers.",
		},
		[]string{"layer", "project"},
	)

	featuresEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geodraft_features_emitted_total",
			Help: "Features written out per named result.",
		},
		[]string{"result", "project"},
	)

	layerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geodraft_layer_failures_total",
			Help: "Layers aborted, by failure stage.",
		},
		[]string{"layer", "stage", "project"},
	)

	replicationBufferedFeatures = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geodraft_replication_buffered_features",
			Help:    "Features buffered per stream replication.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1 to ~260k
		},
		[]string{"project"},
	)

	tileCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geodraft_tile_cache_results_total",
			Help: "Raster tile cache lookups by outcome.",
		},
		[]string{"outcome", "tier", "project"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geodraft_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}

func AddFeaturesRead(layer string, n int) {
	if n > 0 {
		featuresReadTotal.WithLabelValues(layer, getProject()).Add(float64(n))
	}
}

func AddFeaturesEmitted(result string, n int) {
	if n > 0 {
		featuresEmittedTotal.WithLabelValues(result, getProject()).Add(float64(n))
	}
}

func IncLayerFailure(layer, stage string) {
	layerFailuresTotal.WithLabelValues(layer, stage, getProject()).Inc()
}

func ObserveReplicationBuffer(n int) {
	replicationBufferedFeatures.WithLabelValues(getProject()).Observe(float64(n))
}

func IncTileCacheHit(tier string) {
	tileCacheResults.WithLabelValues("hit", tier, getProject()).Inc()
}

func IncTileCacheMiss(tier string) {
	tileCacheResults.WithLabelValues("miss", tier, getProject()).Inc()
}
