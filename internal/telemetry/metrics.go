package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kafkasplit/internal/logging"
)

// Metrics holds the split-read metric set. A nil *Metrics records nothing.
type Metrics struct {
	SplitsTotal   *prometheus.CounterVec
	PollsTotal    *prometheus.CounterVec
	EmptyPolls    *prometheus.CounterVec
	RecordsTotal  *prometheus.CounterVec
	RowsWritten   *prometheus.CounterVec
	RowsRejected  *prometheus.CounterVec
	PollDuration  *prometheus.HistogramVec
	SplitDuration *prometheus.HistogramVec
}

// NewMetrics registers and returns the metric set on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SplitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafkasplit_splits_total",
			Help: "Split reads by terminal outcome.",
		}, []string{"topic", "outcome"}),
		PollsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafkasplit_polls_total",
			Help: "Broker polls issued.",
		}, []string{"topic"}),
		EmptyPolls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafkasplit_empty_polls_total",
			Help: "Broker polls that returned no records.",
		}, []string{"topic"}),
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafkasplit_records_total",
			Help: "Records handed to the row projector.",
		}, []string{"topic"}),
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafkasplit_rows_written_total",
			Help: "Rows accepted by the sink.",
		}, []string{"topic"}),
		RowsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kafkasplit_rows_rejected_total",
			Help: "Rows the sink rejected.",
		}, []string{"topic"}),
		PollDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafkasplit_poll_duration_seconds",
			Help:    "Duration of one broker poll.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
		SplitDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kafkasplit_split_duration_seconds",
			Help:    "Wall time of one split read.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"topic"}),
	}
}

// ObservePoll records one poll and whether it came back empty.
func (m *Metrics) ObservePoll(topic string, records int, d time.Duration) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(topic).Inc()
	m.PollDuration.WithLabelValues(topic).Observe(d.Seconds())
	if records == 0 {
		m.EmptyPolls.WithLabelValues(topic).Inc()
	}
}

// ObserveRow records one projected record and whether the sink kept it.
func (m *Metrics) ObserveRow(topic string, written bool) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(topic).Inc()
	if written {
		m.RowsWritten.WithLabelValues(topic).Inc()
	} else {
		m.RowsRejected.WithLabelValues(topic).Inc()
	}
}

// ObserveSplit records the terminal outcome of a split read.
func (m *Metrics) ObserveSplit(topic, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.SplitsTotal.WithLabelValues(topic, outcome).Inc()
	m.SplitDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// Expose serves g on :port/metrics until ctx is done.
func Expose(ctx context.Context, port int, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server", "port", port, "err", err)
		}
	}()
}
