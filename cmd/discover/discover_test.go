package discover

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"xpref/internal/beacon"
	"xpref/internal/manager"
	"xpref/pkg/config"
)

func TestNewDiscoverer(t *testing.T) {
	tests := []struct {
		name        string
		discovery   config.DiscoveryConfig
		wantErr     bool
		wantRetry   bool
		wantTimeout time.Duration
	}{
		{
			name:        "plain listener",
			discovery:   config.DiscoveryConfig{Timeout: "2s"},
			wantTimeout: 2 * time.Second,
		},
		{
			name:        "retry wraps listener",
			discovery:   config.DiscoveryConfig{Timeout: "3s", Retry: true, MaxRetryElapsed: "1m"},
			wantRetry:   true,
			wantTimeout: 3 * time.Second,
		},
		{
			name:        "zero timeout waits forever",
			discovery:   config.DiscoveryConfig{Timeout: "0s"},
			wantTimeout: 0,
		},
		{
			name:      "bad timeout",
			discovery: config.DiscoveryConfig{Timeout: "soon"},
			wantErr:   true,
		},
		{
			name:      "bad retry budget",
			discovery: config.DiscoveryConfig{Timeout: "3s", Retry: true, MaxRetryElapsed: "forever"},
			wantErr:   true,
		},
		{
			name:      "bad network range",
			discovery: config.DiscoveryConfig{Timeout: "3s", NetworkRange: "not-a-cidr"},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Discovery: tt.discovery}

			d, timeout, err := NewDiscoverer(cfg, zerolog.Nop())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewDiscoverer failed: %v", err)
			}
			if timeout != tt.wantTimeout {
				t.Errorf("timeout: got %v, want %v", timeout, tt.wantTimeout)
			}

			if tt.wantRetry {
				r, ok := d.(*manager.RetryDiscoverer)
				if !ok {
					t.Fatalf("got %T, want *manager.RetryDiscoverer", d)
				}
				if r.MaxElapsed != time.Minute {
					t.Errorf("MaxElapsed: got %v, want 1m", r.MaxElapsed)
				}
				if _, ok := r.Discoverer.(*beacon.Listener); !ok {
					t.Errorf("wrapped discoverer: got %T, want *beacon.Listener", r.Discoverer)
				}
				return
			}
			if _, ok := d.(*beacon.Listener); !ok {
				t.Errorf("got %T, want *beacon.Listener", d)
			}
		})
	}
}
