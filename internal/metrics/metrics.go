package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/doridoridoriand/latencybar/internal/config"
	"github.com/doridoridoriand/latencybar/internal/state"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SnapshotSource provides the current statistics.
type SnapshotSource interface {
	Snapshot() state.Snapshot
}

// SettingsSource provides the probed host.
type SettingsSource interface {
	Settings() config.Settings
}

// InFlightSource reports concurrent probe attempts.
type InFlightSource interface {
	Active() int
	Peak() int
}

var (
	currentDesc = prometheus.NewDesc("latencybar_latency_current_ms",
		"Latency of the most recent successful probe in milliseconds.", []string{"host"}, nil)
	averageDesc = prometheus.NewDesc("latencybar_latency_average_ms",
		"Mean latency since the last reset in milliseconds.", []string{"host"}, nil)
	minDesc = prometheus.NewDesc("latencybar_latency_min_ms",
		"Lowest latency since the last reset in milliseconds.", []string{"host"}, nil)
	maxDesc = prometheus.NewDesc("latencybar_latency_max_ms",
		"Highest latency since the last reset in milliseconds.", []string{"host"}, nil)
	upDesc = prometheus.NewDesc("latencybar_up",
		"1 if the most recent probe succeeded.", []string{"host"}, nil)
	samplesDesc = prometheus.NewDesc("latencybar_samples",
		"Successful samples since the last reset.", []string{"host"}, nil)
	historyDesc = prometheus.NewDesc("latencybar_history_length",
		"Entries in the history buffer.", []string{"host"}, nil)
	inFlightDesc = prometheus.NewDesc("latencybar_probes_in_flight",
		"Probe processes currently running.", []string{"host"}, nil)
	inFlightPeakDesc = prometheus.NewDesc("latencybar_probes_in_flight_peak",
		"Highest number of concurrent probe processes observed.", []string{"host"}, nil)
)

// Collector exports the latency store as Prometheus metrics.
type Collector struct {
	stats    SnapshotSource
	settings SettingsSource
	inFlight InFlightSource
}

// NewCollector builds a collector. inFlight may be nil.
func NewCollector(stats SnapshotSource, settings SettingsSource, inFlight InFlightSource) *Collector {
	return &Collector{stats: stats, settings: settings, inFlight: inFlight}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- currentDesc
	ch <- averageDesc
	ch <- minDesc
	ch <- maxDesc
	ch <- upDesc
	ch <- samplesDesc
	ch <- historyDesc
	ch <- inFlightDesc
	ch <- inFlightPeakDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	host := c.settings.Settings().Host
	snap := c.stats.Snapshot()
	stats := snap.Stats

	gauge := func(desc *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, host)
	}

	up := 0.0
	if stats.Current.OK {
		up = 1
		gauge(currentDesc, stats.Current.Millis)
	}
	gauge(upDesc, up)
	if stats.Average != nil {
		gauge(averageDesc, *stats.Average)
		gauge(minDesc, *stats.Minimum)
		gauge(maxDesc, *stats.Maximum)
	}
	gauge(samplesDesc, float64(stats.Count))
	gauge(historyDesc, float64(len(snap.History)))
	if c.inFlight != nil {
		gauge(inFlightDesc, float64(c.inFlight.Active()))
		gauge(inFlightPeakDesc, float64(c.inFlight.Peak()))
	}
}

// Handler returns an http handler serving c from a private registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server and blocks until context cancellation.
func Serve(ctx context.Context, addr string, c *Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(c))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return context.Canceled
		}
		return err
	}
}
