package manager

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"xpref/internal/beacon"
	"xpref/internal/wire"
)

// flakyDiscoverer times out a fixed number of times before finding a host.
type flakyDiscoverer struct {
	failures int
	err      error
	calls    int
}

func (f *flakyDiscoverer) Discover(ctx context.Context, timeout time.Duration) (wire.HostInfo, error) {
	f.calls++
	if f.calls <= f.failures {
		return wire.HostInfo{}, fmt.Errorf("%w within %s", beacon.ErrDiscoveryTimeout, timeout)
	}
	if f.err != nil {
		return wire.HostInfo{}, f.err
	}
	return wire.HostInfo{IP: "10.0.0.5", Port: 49000, Hostname: "sim"}, nil
}

func TestRetryDiscoverer_RetriesTimeouts(t *testing.T) {
	f := &flakyDiscoverer{failures: 2}
	r := &RetryDiscoverer{Discoverer: f, InitialInterval: time.Millisecond, MaxElapsed: 5 * time.Second, Log: zerolog.Nop()}

	host, err := r.Discover(context.Background(), time.Millisecond)
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if host.Hostname != "sim" {
		t.Errorf("host: got %+v", host)
	}
	if f.calls != 3 {
		t.Errorf("calls: got %d, want 3", f.calls)
	}
}

func TestRetryDiscoverer_OtherErrorsArePermanent(t *testing.T) {
	boom := errors.New("bind failed")
	f := &flakyDiscoverer{err: boom}
	r := &RetryDiscoverer{Discoverer: f, InitialInterval: time.Millisecond, MaxElapsed: 5 * time.Second, Log: zerolog.Nop()}

	_, err := r.Discover(context.Background(), time.Millisecond)
	if !errors.Is(err, boom) {
		t.Fatalf("expected bind error, got %v", err)
	}
	if f.calls != 1 {
		t.Errorf("calls: got %d, want 1", f.calls)
	}
}

func TestRetryDiscoverer_GivesUp(t *testing.T) {
	f := &flakyDiscoverer{failures: 1 << 30}
	r := &RetryDiscoverer{Discoverer: f, InitialInterval: time.Millisecond, MaxElapsed: 50 * time.Millisecond, Log: zerolog.Nop()}

	_, err := r.Discover(context.Background(), time.Millisecond)
	if !errors.Is(err, beacon.ErrDiscoveryTimeout) {
		t.Fatalf("expected ErrDiscoveryTimeout, got %v", err)
	}
	if f.calls < 2 {
		t.Errorf("calls: got %d, want retries", f.calls)
	}
}

func TestRetryDiscoverer_ContextCancel(t *testing.T) {
	f := &flakyDiscoverer{failures: 1 << 30}
	r := &RetryDiscoverer{Discoverer: f, InitialInterval: 10 * time.Millisecond, Log: zerolog.Nop()}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Discover(ctx, time.Millisecond)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("retry loop outlived its context")
	}
}
