// Package monitor exposes Prometheus metrics for the poller.
package monitor

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	Queries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lockin_queries_total",
		Help: "Number of queries sent to the instrument.",
	})

	QueryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lockin_query_errors_total",
			Help: "Number of failed queries by failure stage.",
		},
		[]string{"stage"},
	)

	EmptyReplies = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lockin_empty_replies_total",
		Help: "Number of queries that returned no bytes within the read window.",
	})

	ReplyBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lockin_reply_bytes_total",
		Help: "Total reply bytes received from the instrument.",
	})

	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lockin_query_duration_seconds",
		Help:    "Wall time of a full connect/write/read/close exchange.",
		Buckets: prometheus.DefBuckets,
	})
)

var registerOnce sync.Once

// Monitor serves the metrics endpoint.
type Monitor struct {
	log *logrus.Logger
}

// New registers the collectors and returns a Monitor.
func New(log *logrus.Logger) *Monitor {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Queries,
			QueryErrors,
			EmptyReplies,
			ReplyBytes,
			QueryDuration,
		)
	})
	return &Monitor{log: log}
}

// StartMetricsServer serves /metrics and /health on the given port in the
// background.
func (m *Monitor) StartMetricsServer(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	m.log.Infof("metrics server listening on %s", addr)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			m.log.Errorf("metrics server: %v", err)
		}
	}()
}

// ObserveQuery records the outcome of one exchange. stage is empty on
// success, otherwise "connect" or "io".
func ObserveQuery(elapsed time.Duration, replyLen int, stage string) {
	Queries.Inc()
	QueryDuration.Observe(elapsed.Seconds())

	if stage != "" {
		QueryErrors.WithLabelValues(stage).Inc()
		return
	}
	if replyLen == 0 {
		EmptyReplies.Inc()
	}
	ReplyBytes.Add(float64(replyLen))
}
