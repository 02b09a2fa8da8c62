// Package discover implements the xpref discover command.
package discover

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"xpref/internal/beacon"
	"xpref/internal/manager"
	"xpref/internal/netiface"
	"xpref/internal/store"
	"xpref/internal/wire"
	"xpref/pkg/config"
	"xpref/pkg/logger"
)

// Run listens for one simulator beacon, prints the host and caches it.
func Run(configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.Init(cfg.Log.Level)

	d, timeout, err := NewDiscoverer(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, err := d.Discover(ctx, timeout)
	if err != nil {
		if errors.Is(err, beacon.ErrDiscoveryTimeout) {
			return fmt.Errorf("%w; is X-Plane running on this network?", err)
		}
		return fmt.Errorf("discovering simulator: %w", err)
	}

	fmt.Printf("%s  %s  version %d  role %s  raknet %d\n",
		host.Addr(), host.Hostname, host.SimVersion, host.Role, host.RaknetPort)

	CacheHost(cfg.Store.Path, host, log)
	return nil
}

// NewDiscoverer builds the beacon listener described by cfg, wrapped in a
// retrying discoverer when retry is enabled. It also returns the timeout of
// a single attempt.
func NewDiscoverer(cfg *config.Config, log zerolog.Logger) (manager.Discoverer, time.Duration, error) {
	timeout, err := cfg.Discovery.ParseTimeout()
	if err != nil {
		return nil, 0, fmt.Errorf("parsing discovery timeout: %w", err)
	}

	iface, err := netiface.Select(cfg.Discovery.Interface, cfg.Discovery.NetworkRange)
	if err != nil {
		return nil, 0, fmt.Errorf("selecting interface: %w", err)
	}

	ifaceName := "auto"
	if iface != nil {
		ifaceName = iface.Name
	}
	log.Info().
		Str("group", cfg.Discovery.Group).
		Int("port", cfg.Discovery.Port).
		Str("interface", ifaceName).
		Dur("timeout", timeout).
		Bool("retry", cfg.Discovery.Retry).
		Msg("Listening for simulator beacons")

	var d manager.Discoverer = beacon.NewListener(beacon.Config{
		Group:     cfg.Discovery.Group,
		Port:      cfg.Discovery.Port,
		Interface: iface,
	}, log)

	if cfg.Discovery.Retry {
		maxElapsed, err := cfg.Discovery.ParseMaxRetryElapsed()
		if err != nil {
			return nil, 0, fmt.Errorf("parsing max retry elapsed: %w", err)
		}
		d = &manager.RetryDiscoverer{Discoverer: d, MaxElapsed: maxElapsed, Log: log}
	}
	return d, timeout, nil
}

// CacheHost records host in the store at path. Failures are logged only.
func CacheHost(path string, host wire.HostInfo, log zerolog.Logger) {
	db, err := store.Open(path, log)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open host cache")
		return
	}
	defer db.Close()

	if _, err := db.Upsert(host); err != nil {
		log.Warn().Err(err).Msg("Failed to cache host")
	}
}
