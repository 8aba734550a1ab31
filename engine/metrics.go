package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineFrameLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "engine_frame_latency",
		Help:    "The time to process a frame.",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	engineFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engine_frames",
		Help: "The number of processed frames.",
	})

	engineFrameHandlers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "engine_frame_handlers",
		Help: "The number of registered frame handlers.",
	})
)

func instrumentFrame(start time.Time) {
	engineFrames.Inc()
	engineFrameLatency.Observe(time.Since(start).Seconds())
}

func instrumentFrameHandlers(n int) {
	engineFrameHandlers.Set(float64(n))
}
