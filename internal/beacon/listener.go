// Package beacon implements discovery of a running simulator through its UDP
// multicast beacon, plus an announcer that emulates one for testing.
package beacon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	"xpref/internal/wire"
)

const maxPacketSize = 4096

// ErrDiscoveryTimeout is returned when no valid beacon arrives in time.
var ErrDiscoveryTimeout = errors.New("no simulator beacon received")

// Config controls a discovery attempt.
type Config struct {
	Group     string
	Port      int
	Interface *net.Interface // nil lets the kernel pick
}

// Listener discovers simulator hosts on the local network.
type Listener struct {
	cfg Config
	log zerolog.Logger
}

// NewListener returns a Listener, filling in the standard group and port when unset.
func NewListener(cfg Config, log zerolog.Logger) *Listener {
	if cfg.Group == "" {
		cfg.Group = wire.BeaconGroup
	}
	if cfg.Port == 0 {
		cfg.Port = wire.BeaconPort
	}
	return &Listener{cfg: cfg, log: log}
}

// Discover joins the beacon multicast group and returns the first simulator
// that announces itself with an accepted beacon version. The timeout bounds
// the whole attempt; zero or negative waits until ctx is done.
func (l *Listener) Discover(ctx context.Context, timeout time.Duration) (wire.HostInfo, error) {
	group := net.ParseIP(l.cfg.Group).To4()
	if group == nil || !group.IsMulticast() {
		return wire.HostInfo{}, fmt.Errorf("invalid multicast group: %s", l.cfg.Group)
	}

	bindHost := ""
	if bindGroupAddr {
		bindHost = group.String()
	}
	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort(bindHost, strconv.Itoa(l.cfg.Port)))
	if err != nil {
		return wire.HostInfo{}, fmt.Errorf("listening on beacon port %d: %w", l.cfg.Port, err)
	}
	defer conn.Close()

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(l.cfg.Interface, &net.UDPAddr{IP: group}); err != nil {
		return wire.HostInfo{}, fmt.Errorf("joining multicast group %s: %w", group, err)
	}

	if uc, ok := conn.(*net.UDPConn); ok {
		if err := uc.SetReadBuffer(maxPacketSize * 10); err != nil {
			l.log.Warn().Err(err).Msg("Failed to set read buffer")
		}
	}

	ifaceName := ""
	if l.cfg.Interface != nil {
		ifaceName = l.cfg.Interface.Name
	}
	l.log.Info().
		Str("multicast_group", group.String()).
		Int("port", l.cfg.Port).
		Str("interface", ifaceName).
		Dur("timeout", timeout).
		Msg("Waiting for simulator beacon")

	return DiscoverFrom(ctx, conn, timeout, l.log)
}

// DiscoverFrom reads conn until a valid beacon arrives, the timeout elapses
// or ctx is done. Frames that fail to decode are dropped. The caller owns conn.
func DiscoverFrom(ctx context.Context, conn net.PacketConn, timeout time.Duration, log zerolog.Logger) (wire.HostInfo, error) {
	if timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return wire.HostInfo{}, fmt.Errorf("setting read deadline: %w", err)
		}
	}
	// Unblock the pending read on cancellation.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	buf := make([]byte, maxPacketSize)
	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return wire.HostInfo{}, ctxErr
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return wire.HostInfo{}, fmt.Errorf("%w within %s", ErrDiscoveryTimeout, timeout)
			}
			return wire.HostInfo{}, fmt.Errorf("reading beacon: %w", err)
		}

		b, err := wire.DecodeBeacon(buf[:n])
		if err != nil {
			log.Debug().
				Str("src", src.String()).
				Int("bytes", n).
				Err(err).
				Msg("Ignoring packet")
			continue
		}

		host := b.HostInfo(sourceIP(src))
		log.Info().
			Str("ip", host.IP).
			Uint16("port", host.Port).
			Str("hostname", host.Hostname).
			Int32("sim_version", host.SimVersion).
			Stringer("role", host.Role).
			Msg("Simulator discovered")
		return host, nil
	}
}

func sourceIP(addr net.Addr) string {
	if ua, ok := addr.(*net.UDPAddr); ok {
		return ua.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
