package middleware

// Prometheus instrumentation for the API. Labels are the method, the
// registered route template and the status code; requests that matched no
// route share the "unmatched" label so scanners cannot blow up cardinality.
// Presentation streams stay open for the whole talk, so they are kept out of
// the request latency histogram and measured on their own.

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const unmatchedRoute = "unmatched"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of non-streaming HTTP requests in seconds.",
			// Synchronous generation of a long deck can take a while.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests, streams excluded.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		},
		[]string{"method", "path"},
	)

	streamsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "presentation_streams_open",
			Help: "Number of connected presentation event streams.",
		},
	)

	streamDur = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "presentation_stream_duration_seconds",
			Help:    "How long presentation event streams stayed connected.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8), // 1s..4.5h
		},
	)

	replays = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_idempotent_replays_total",
			Help: "Requests answered from a stored idempotent response.",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, streamsOpen, streamDur, replays)
}

// Metrics instruments every request. Mount /metrics next to it:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		stream := isStream(c)
		if stream {
			streamsOpen.Inc()
			defer streamsOpen.Dec()
		} else {
			httpInflight.Inc()
			defer httpInflight.Dec()
		}

		c.Next()

		path := metricPath(c)
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		if IsReplay(c) {
			replays.WithLabelValues(path).Inc()
		}
		if stream {
			streamDur.Observe(time.Since(start).Seconds())
			return
		}
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

func metricPath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return unmatchedRoute
}
