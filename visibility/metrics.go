package visibility

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeLabel = "mode"

	modeDynamic   = "dynamic"
	modeOcclusion = "occlusion"
)

var (
	visibilityPassLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visibility_pass_latency",
		Help:    "The time to compute a visibility set.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{modeLabel})

	visibilityTiles = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "visibility_tiles",
		Help: "The number of tiles in the last visibility set.",
	}, []string{modeLabel})

	visibilityEntities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "visibility_entities",
		Help: "The number of entities accepted by the last visibility pass.",
	}, []string{modeLabel})

	visibilityCulledTiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visibility_culled_tiles",
		Help: "The number of tiles rejected by frustum classification.",
	}, []string{modeLabel})

	occlusionSkippedObjects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "occlusion_skipped_objects",
		Help: "The number of occlusion references pointing outside of their tile.",
	})
)

func instrumentPass(mode string, start time.Time, tiles, entities, culled int) {
	labels := prometheus.Labels{modeLabel: mode}

	visibilityPassLatency.With(labels).Observe(time.Since(start).Seconds())
	visibilityTiles.With(labels).Set(float64(tiles))
	visibilityEntities.With(labels).Set(float64(entities))

	if culled != 0 {
		visibilityCulledTiles.With(labels).Add(float64(culled))
	}
}

func instrumentSkippedObjects(n int) {
	if n != 0 {
		occlusionSkippedObjects.Add(float64(n))
	}
}
