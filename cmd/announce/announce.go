// Package announce implements the xpref announce command, which emulates
// the beacon of a simulator host.
package announce

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"xpref/internal/beacon"
	"xpref/internal/netiface"
	"xpref/internal/wire"
	"xpref/pkg/config"
	"xpref/pkg/logger"
)

// Run multicasts a beacon described by the [announce] section until interrupted.
func Run(configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logger.Init(cfg.Log.Level)

	interval, err := cfg.Announce.ParseInterval()
	if err != nil {
		return fmt.Errorf("parsing interval: %w", err)
	}

	iface, err := netiface.Select(cfg.Discovery.Interface, cfg.Discovery.NetworkRange)
	if err != nil {
		return fmt.Errorf("selecting interface: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("hostname", cfg.Announce.Hostname).
		Uint16("port", cfg.Announce.Port).
		Dur("interval", interval).
		Msg("Announcing simulator beacon")

	return beacon.Announce(ctx, beacon.AnnounceConfig{
		Group:     cfg.Discovery.Group,
		Port:      cfg.Discovery.Port,
		Interface: iface,
		Interval:  interval,
		Beacon:    Beacon(cfg.Announce),
	}, log)
}

// Beacon builds the beacon of an X-Plane master from cfg.
func Beacon(cfg config.AnnounceConfig) wire.Beacon {
	return wire.Beacon{
		Major:      1,
		Minor:      2,
		HostID:     1,
		SimVersion: cfg.SimVersion,
		Role:       wire.RoleMaster,
		Port:       cfg.Port,
		Hostname:   cfg.Hostname,
		RaknetPort: cfg.RaknetPort,
	}
}
