// Package metrics exposes Prometheus instrumentation for discovery and
// dataref streams. A nil *Metrics is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "xpref"

// Metrics holds the collectors updated by subscriptions and discovery.
type Metrics struct {
	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	samples        *prometheus.CounterVec
	value          *prometheus.GaugeVec
	discoveries    *prometheus.CounterVec
	active         prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Datagrams received per subscribed channel.",
		}, []string{"channel"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Datagrams that failed to decode per subscribed channel.",
		}, []string{"channel"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Decoded samples dispatched per channel.",
		}, []string{"channel"}),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dataref_value",
			Help:      "Last value received per channel.",
		}, []string{"channel"}),
		discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Discovery attempts by result.",
		}, []string{"result"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions_active",
			Help:      "Subscriptions currently streaming.",
		}),
	}
	reg.MustRegister(m.framesReceived, m.framesDropped, m.samples, m.value, m.discoveries, m.active)
	return m
}

func (m *Metrics) FrameReceived(channel string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(channel).Inc()
}

func (m *Metrics) FrameDropped(channel string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(channel).Inc()
}

// Sample counts a dispatched sample and records its value.
func (m *Metrics) Sample(channel string, v float32) {
	if m == nil {
		return
	}
	m.samples.WithLabelValues(channel).Inc()
	m.value.WithLabelValues(channel).Set(float64(v))
}

// Discovery records the outcome of a discovery attempt: "found", "timeout" or "error".
func (m *Metrics) Discovery(result string) {
	if m == nil {
		return
	}
	m.discoveries.WithLabelValues(result).Inc()
}

func (m *Metrics) SubscriptionStarted() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) SubscriptionStopped() {
	if m == nil {
		return
	}
	m.active.Dec()
}

// Serve exposes g on addr under path until ctx is done.
func Serve(ctx context.Context, addr, path string, g prometheus.Gatherer, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("listen", addr).Str("path", path).Msg("Metrics server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics on %s: %w", addr, err)
	}
	return nil
}
