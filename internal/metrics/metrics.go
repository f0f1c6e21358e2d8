// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics exports query client events to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"indexsupply/cli/pkg/indexsupply"
)

// Config configures the collector.
type Config struct {
	// Namespace prefixes every metric name. Default: "indexsupply"
	Namespace string
	// Registry receives the collectors. Default: a fresh registry.
	Registry *prometheus.Registry
}

// Collector implements indexsupply.Metrics.
type Collector struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	state           *prometheus.GaugeVec
	transitions     *prometheus.CounterVec
	frames          prometheus.Counter
	rows            prometheus.Counter
	blockHeight     prometheus.Gauge
	retries         *prometheus.CounterVec
	retryDelay      prometheus.Histogram
	bytesRead       prometheus.Counter
}

var _ indexsupply.Metrics = (*Collector)(nil)

var states = []indexsupply.State{
	indexsupply.StateConnecting,
	indexsupply.StateStreaming,
	indexsupply.StateRetrying,
	indexsupply.StateCancelled,
	indexsupply.StateFailed,
}

// New registers the collectors and returns them.
func New(cfg Config) *Collector {
	if cfg.Namespace == "" {
		cfg.Namespace = "indexsupply"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace

	c := &Collector{
		registry: cfg.Registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "requests_total",
			Help:      "HTTP requests by endpoint and status code (0 for transport failures).",
		}, []string{"endpoint", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "request_duration_seconds",
			Help:      "Time until response headers arrive.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "live",
			Name:      "state",
			Help:      "1 for the current live stream state, 0 otherwise.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "live",
			Name:      "transitions_total",
			Help:      "Live stream state transitions.",
		}, []string{"from", "to"}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "live",
			Name:      "frames_total",
			Help:      "Decoded live frames.",
		}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "live",
			Name:      "rows_total",
			Help:      "Rows delivered by live frames.",
		}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "live",
			Name:      "block_height",
			Help:      "Block height of the latest live frame.",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "retries_total",
			Help:      "Retries by error kind.",
		}, []string{"kind"}),
		retryDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "retry_delay_seconds",
			Help:      "Backoff delay before each retry.",
			Buckets:   []float64{0, 0.5, 1, 2, 4, 8, 10, 30},
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "live",
			Name:      "bytes_read_total",
			Help:      "Bytes read from live streams.",
		}),
	}

	cfg.Registry.MustRegister(
		c.requests, c.requestDuration, c.state, c.transitions,
		c.frames, c.rows, c.blockHeight, c.retries, c.retryDelay, c.bytesRead,
	)
	for _, s := range states {
		c.state.WithLabelValues(s.String()).Set(0)
	}
	return c
}

// Registry returns the registry the collectors live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Request(path string, status int, elapsed time.Duration) {
	c.requests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

func (c *Collector) State(from, to indexsupply.State) {
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
	for _, s := range states {
		v := 0.0
		if s == to {
			v = 1
		}
		c.state.WithLabelValues(s.String()).Set(v)
	}
}

func (c *Collector) Frame(rows int, blockHeight uint64) {
	c.frames.Inc()
	c.rows.Add(float64(rows))
	c.blockHeight.Set(float64(blockHeight))
}

func (c *Collector) Retry(kind indexsupply.Kind, delay time.Duration) {
	c.retries.WithLabelValues(kind.String()).Inc()
	c.retryDelay.Observe(delay.Seconds())
}

func (c *Collector) Bytes(n int) {
	c.bytesRead.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
