package manager

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"xpref/internal/beacon"
	"xpref/internal/wire"
)

// RetryDiscoverer re-runs discovery with exponential backoff while attempts
// time out. Any other error is returned immediately.
type RetryDiscoverer struct {
	Discoverer      Discoverer
	InitialInterval time.Duration // defaults to 500ms
	MaxElapsed      time.Duration // zero retries until ctx is done
	Log             zerolog.Logger
}

// Discover implements Discoverer.
func (r *RetryDiscoverer) Discover(ctx context.Context, timeout time.Duration) (wire.HostInfo, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	if r.InitialInterval > 0 {
		b.InitialInterval = r.InitialInterval
	}
	b.MaxElapsedTime = r.MaxElapsed

	attempt := 0
	var host wire.HostInfo
	op := func() error {
		attempt++
		h, err := r.Discoverer.Discover(ctx, timeout)
		if err == nil {
			host = h
			return nil
		}
		if !errors.Is(err, beacon.ErrDiscoveryTimeout) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.Log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("retry_in", wait).
			Msg("Discovery attempt failed, retrying")
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return wire.HostInfo{}, err
	}
	return host, nil
}
