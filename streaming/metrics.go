package streaming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultLabel = "result"

	resultLoaded   = "loaded"
	resultFailed   = "failed"
	resultTooLarge = "too_large"
)

var (
	streamingLodLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streaming_lod_loads",
		Help: "The number of LOD loads by result.",
	}, []string{resultLabel})

	streamingTextureLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streaming_texture_loads",
		Help: "The number of texture loads by result.",
	}, []string{resultLabel})

	streamingState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streaming_state",
		Help: "The state of the streaming loader: 0 announce, 1 textures, 2 geometry, 3 done.",
	})
)

func instrumentLodLoad(result string) {
	streamingLodLoads.
		With(prometheus.Labels{resultLabel: result}).
		Inc()
}

func instrumentTextureLoad(result string) {
	streamingTextureLoads.
		With(prometheus.Labels{resultLabel: result}).
		Inc()
}

func instrumentState(s State) {
	streamingState.Set(float64(s))
}
