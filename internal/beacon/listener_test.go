package beacon

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"xpref/internal/wire"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func loopbackPair(t *testing.T) (net.PacketConn, *net.UDPConn) {
	t.Helper()
	recv, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { recv.Close() })

	send, err := net.DialUDP("udp4", nil, recv.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { send.Close() })
	return recv, send
}

func simBeacon() wire.Beacon {
	return wire.Beacon{
		Major:      1,
		Minor:      2,
		HostID:     1,
		SimVersion: 115502,
		Role:       wire.RoleMaster,
		Port:       49000,
		Hostname:   "TESTHOST",
		RaknetPort: 49001,
	}
}

func TestDiscoverFrom_ValidBeacon(t *testing.T) {
	recv, send := loopbackPair(t)

	planemaker := simBeacon()
	planemaker.HostID = 2
	planemaker.Hostname = "PLANEMAKER"

	oldVersion := simBeacon()
	oldVersion.Minor = 1

	go func() {
		send.Write([]byte("garbage"))
		send.Write(wire.EncodeBeacon(planemaker))
		send.Write(wire.EncodeBeacon(oldVersion))
		send.Write(wire.EncodeBeacon(simBeacon()))
	}()

	host, err := DiscoverFrom(context.Background(), recv, 2*time.Second, testLogger())
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}

	want := wire.HostInfo{
		IP:         "127.0.0.1",
		Port:       49000,
		Hostname:   "TESTHOST",
		SimVersion: 115502,
		Role:       wire.RoleMaster,
		RaknetPort: 49001,
	}
	if host != want {
		t.Errorf("got %+v, want %+v", host, want)
	}
}

func TestDiscoverFrom_Timeout(t *testing.T) {
	recv, send := loopbackPair(t)

	// Noise must not extend the deadline.
	go func() {
		for i := 0; i < 5; i++ {
			send.Write([]byte("BECN\x00short"))
			time.Sleep(100 * time.Millisecond)
		}
	}()

	start := time.Now()
	_, err := DiscoverFrom(context.Background(), recv, time.Second, testLogger())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrDiscoveryTimeout) {
		t.Fatalf("expected ErrDiscoveryTimeout, got %v", err)
	}
	if elapsed < time.Second || elapsed > 1200*time.Millisecond {
		t.Errorf("timeout took %v, want about 1s", elapsed)
	}
}

func TestDiscoverFrom_ContextCancel(t *testing.T) {
	recv, _ := loopbackPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	// No timeout: only cancellation can end the wait.
	_, err := DiscoverFrom(ctx, recv, 0, testLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancellation took %v", time.Since(start))
	}
}

func TestDiscoverFrom_ClosedConn(t *testing.T) {
	recv, _ := loopbackPair(t)
	recv.Close()

	_, err := DiscoverFrom(context.Background(), recv, time.Second, testLogger())
	if err == nil || errors.Is(err, ErrDiscoveryTimeout) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestListener_InvalidGroup(t *testing.T) {
	l := NewListener(Config{Group: "10.0.0.1"}, testLogger())
	if _, err := l.Discover(context.Background(), time.Second); err == nil {
		t.Fatal("expected error for unicast group")
	}
}

func TestListener_DiscoverAnnounced(t *testing.T) {
	if testing.Short() {
		t.Skip("multicast test skipped in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A private group and port keep this away from a real simulator.
	const group, port = "239.255.1.77", 49717

	go Announce(ctx, AnnounceConfig{
		Group:    group,
		Port:     port,
		Interval: 100 * time.Millisecond,
		Beacon:   simBeacon(),
	}, testLogger())

	l := NewListener(Config{Group: group, Port: port}, testLogger())
	host, err := l.Discover(ctx, 2*time.Second)
	if err != nil {
		t.Skipf("multicast not available in this environment: %v", err)
	}
	if host.Hostname != "TESTHOST" || host.Port != 49000 || host.RaknetPort != 49001 {
		t.Errorf("unexpected host: %+v", host)
	}
}
