package beacon

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	"xpref/internal/wire"
)

// AnnounceConfig describes the beacon an Announcer multicasts.
type AnnounceConfig struct {
	Group     string
	Port      int
	Interface *net.Interface
	Interval  time.Duration
	Beacon    wire.Beacon
}

// Announce multicasts cfg.Beacon every cfg.Interval until ctx is done,
// emulating a simulator host for clients on the same network.
func Announce(ctx context.Context, cfg AnnounceConfig, log zerolog.Logger) error {
	if cfg.Group == "" {
		cfg.Group = wire.BeaconGroup
	}
	if cfg.Port == 0 {
		cfg.Port = wire.BeaconPort
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	group := net.ParseIP(cfg.Group).To4()
	if group == nil || !group.IsMulticast() {
		return fmt.Errorf("invalid multicast group: %s", cfg.Group)
	}
	target := &net.UDPAddr{IP: group, Port: cfg.Port}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return fmt.Errorf("listening for UDP: %w", err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	if cfg.Interface != nil {
		if err := pc.SetMulticastInterface(cfg.Interface); err != nil {
			log.Warn().Err(err).Msg("Failed to set multicast interface")
		}
	}
	if err := pc.SetMulticastTTL(1); err != nil {
		log.Warn().Err(err).Msg("Failed to set multicast TTL")
	}
	// Listeners on this machine must see our own beacon.
	if err := pc.SetMulticastLoopback(true); err != nil {
		log.Warn().Err(err).Msg("Failed to enable multicast loopback")
	}

	packet := wire.EncodeBeacon(cfg.Beacon)

	log.Info().
		Str("multicast_group", target.String()).
		Str("hostname", cfg.Beacon.Hostname).
		Uint16("port", cfg.Beacon.Port).
		Dur("interval", cfg.Interval).
		Msg("Announcer started")

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := conn.WriteToUDP(packet, target); err != nil {
			log.Error().Err(err).Str("target", target.String()).Msg("Failed to send beacon")
		} else {
			log.Debug().Int("bytes", len(packet)).Msg("Beacon sent")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("Announcer stopped")
			return nil
		case <-ticker.C:
		}
	}
}
