// Package stream implements the xpref stream command.
package stream

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"xpref/cmd/discover"
	"xpref/internal/manager"
	"xpref/internal/metrics"
	"xpref/internal/subscription"
	"xpref/internal/wire"
	"xpref/pkg/config"
	"xpref/pkg/logger"
)

// ErrNoDatarefs is returned when the config lists nothing to subscribe to.
var ErrNoDatarefs = errors.New("no [[dataref]] entries configured")

// Run discovers the simulator, subscribes every configured dataref and logs
// samples until interrupted.
func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.Init(cfg.Log.Level)

	entries, err := Entries(cfg.Datarefs, LogSamples(log))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, cfg.Metrics.Path, reg, log); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	d, timeout, err := discover.NewDiscoverer(cfg, log)
	if err != nil {
		return err
	}

	// A signal aborts discovery or stops every subscription.
	runCtx, stopRun := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopRun()

	h, err := manager.RunAll(runCtx, d, entries, timeout, subscription.Options{Log: log, Metrics: m})
	if err != nil {
		return err
	}

	discover.CacheHost(cfg.Store.Path, h.Host(), log)

	log.Info().
		Str("host", h.Host().Addr()).
		Str("hostname", h.Host().Hostname).
		Int("datarefs", len(entries)).
		Msg("Streaming datarefs")

	// Shut down on signal or once every subscription has ended on its own.
	select {
	case <-h.Done():
		if err := h.Wait(); err != nil {
			return fmt.Errorf("streaming: %w", err)
		}
		return nil
	case <-runCtx.Done():
		log.Info().Msg("Shutting down")
		return h.Shutdown()
	}
}

// Entries converts configured datarefs to manager entries sharing handler.
func Entries(datarefs []config.DatarefConfig, handler subscription.Handler) ([]manager.Entry, error) {
	if len(datarefs) == 0 {
		return nil, ErrNoDatarefs
	}
	entries := make([]manager.Entry, 0, len(datarefs))
	for _, d := range datarefs {
		entries = append(entries, manager.Entry{
			Request: subscription.Request{
				Channel:   d.Channel,
				Index:     d.Index,
				Frequency: d.Frequency,
			},
			Handler: handler,
		})
	}
	if err := manager.Validate(entries); err != nil {
		return nil, fmt.Errorf("invalid dataref: %w", err)
	}
	return entries, nil
}

// LogSamples returns a handler that logs every sample at info level.
func LogSamples(log zerolog.Logger) subscription.Handler {
	return func(channel string, s wire.Sample) {
		log.Info().
			Str("channel", channel).
			Int32("index", s.Index).
			Float32("value", s.Value).
			Msg("Sample")
	}
}
