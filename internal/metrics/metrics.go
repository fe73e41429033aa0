package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// View results recorded on PasteViews
const (
	ViewServed   = "served"
	ViewNotFound = "not_found"
	ViewError    = "error"
)

var (
	PastesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "pastelite", Name: "pastes_created_total", Help: "Number of pastes created."},
	)
	PasteViews = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "pastelite", Name: "paste_views_total", Help: "Number of paste retrievals by result."},
		[]string{"result"},
	)
	Reaped = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "pastelite", Name: "reaped_total", Help: "Number of expired pastes removed by the reaper."},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pastelite",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(PastesCreated)
	reg.MustRegister(PasteViews)
	reg.MustRegister(Reaped)
	reg.MustRegister(RequestDuration)
}

// Middleware records request latency. Unmatched routes are grouped under
// a single label so random paths cannot blow up cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		RequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
