package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bucketdeck"

// Outcome labels for finished transfers
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// TransferMetrics counts bytes and transfers. A nil *TransferMetrics records nothing
type TransferMetrics struct {
	registry *prometheus.Registry

	bytesTotal     *prometheus.CounterVec
	transfersTotal *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	active         *prometheus.GaugeVec
}

func NewTransferMetrics(registry *prometheus.Registry) *TransferMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &TransferMetrics{
		registry: registry,
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_bytes_total",
			Help:      "Bytes moved by transfers",
		}, []string{"direction"}),
		transfersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Finished transfers by outcome",
		}, []string{"direction", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transfer_duration_seconds",
			Help:      "Wall time of finished transfers",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"direction"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfers_active",
			Help:      "Transfers currently running",
		}, []string{"direction"}),
	}

	for _, c := range []prometheus.Collector{m.bytesTotal, m.transfersTotal, m.duration, m.active} {
		registry.MustRegister(c)
	}
	return m
}

func (m *TransferMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *TransferMetrics) Started(direction string) {
	if m == nil {
		return
	}
	m.active.WithLabelValues(direction).Inc()
}

func (m *TransferMetrics) AddBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.bytesTotal.WithLabelValues(direction).Add(float64(n))
}

func (m *TransferMetrics) Finished(direction string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.active.WithLabelValues(direction).Dec()
	m.transfersTotal.WithLabelValues(direction, outcome).Inc()
	m.duration.WithLabelValues(direction).Observe(elapsed.Seconds())
}

// Server exposes a registry on /metrics
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// Serve starts the metrics endpoint in the background. Go and process collectors are added to the registry
func Serve(addr string, registry *prometheus.Registry, logger *slog.Logger) *Server {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	s := &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		logger: logger.With("component", "metrics"),
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Metrics server failed", "addr", addr, "error", err)
		}
	}()
	s.logger.Debug("Metrics server listening", "addr", addr)
	return s
}

func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}
	return nil
}
