// Package manager discovers a simulator and runs one subscription per
// requested dataref against it.
package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"xpref/internal/beacon"
	"xpref/internal/subscription"
	"xpref/internal/wire"
)

// ErrDuplicateIndex is returned when two requests share an index.
var ErrDuplicateIndex = errors.New("duplicate subscription index")

// Discoverer finds the simulator host. *beacon.Listener implements it.
type Discoverer interface {
	Discover(ctx context.Context, timeout time.Duration) (wire.HostInfo, error)
}

// Entry pairs a request with the handler for its samples.
type Entry struct {
	Request subscription.Request
	Handler subscription.Handler
}

// RunHandle controls the subscriptions started by RunAll.
type RunHandle struct {
	host wire.HostInfo
	subs []*subscription.Subscription
	errs []error
	g    errgroup.Group
	done chan struct{}
}

// Validate checks every request and that indices are unique.
func Validate(entries []Entry) error {
	seen := make(map[int32]string, len(entries))
	for _, e := range entries {
		if err := e.Request.Validate(); err != nil {
			return err
		}
		if prev, ok := seen[e.Request.Index]; ok {
			return fmt.Errorf("%w: %d used by %s and %s", ErrDuplicateIndex, e.Request.Index, prev, e.Request.Channel)
		}
		seen[e.Request.Index] = e.Request.Channel
	}
	return nil
}

// RunAll discovers the simulator, then starts one subscription per entry.
// A discovery failure is returned as is and nothing is started.
func RunAll(ctx context.Context, d Discoverer, entries []Entry, discoveryTimeout time.Duration, opts subscription.Options) (*RunHandle, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}

	host, err := d.Discover(ctx, discoveryTimeout)
	if err != nil {
		opts.Metrics.Discovery(discoveryResult(err))
		return nil, fmt.Errorf("discovering simulator: %w", err)
	}
	opts.Metrics.Discovery("found")

	return Start(ctx, host, entries, opts)
}

func discoveryResult(err error) string {
	if errors.Is(err, beacon.ErrDiscoveryTimeout) {
		return "timeout"
	}
	return "error"
}

// Start subscribes every entry against host concurrently. A subscription that
// fails to start does not prevent the others; its error is reported by Wait.
// Start only fails when no subscription could be started.
func Start(ctx context.Context, host wire.HostInfo, entries []Entry, opts subscription.Options) (*RunHandle, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}

	h := &RunHandle{
		host: host,
		subs: make([]*subscription.Subscription, len(entries)),
		errs: make([]error, len(entries)),
		done: make(chan struct{}),
	}

	var starts errgroup.Group
	for i, e := range entries {
		i, e := i, e
		h.subs[i] = subscription.New(host, e.Request, e.Handler, opts)
		starts.Go(func() error {
			if err := h.subs[i].Start(ctx); err != nil {
				h.errs[i] = fmt.Errorf("starting %s: %w", e.Request.Channel, err)
				opts.Log.Error().Err(err).Str("channel", e.Request.Channel).Msg("Subscription failed to start")
			}
			return nil
		})
	}
	starts.Wait()

	started := 0
	for i, s := range h.subs {
		i, s := i, s
		if h.errs[i] != nil {
			continue
		}
		started++
		h.g.Go(func() error {
			if err := s.Wait(); err != nil {
				h.errs[i] = err
				return err
			}
			return nil
		})
	}
	if started == 0 && len(entries) > 0 {
		return nil, errors.Join(h.errs...)
	}

	go func() {
		h.g.Wait()
		close(h.done)
	}()

	opts.Log.Info().
		Str("host", host.Addr()).
		Int("subscriptions", started).
		Msg("Streaming started")
	return h, nil
}

// Host returns the simulator the subscriptions are bound to.
func (h *RunHandle) Host() wire.HostInfo {
	return h.host
}

// Subscriptions returns the subscriptions in entry order.
func (h *RunHandle) Subscriptions() []*subscription.Subscription {
	return h.subs
}

// Done is closed once every receive loop has exited.
func (h *RunHandle) Done() <-chan struct{} {
	return h.done
}

// Stop stops every subscription that is still active.
func (h *RunHandle) Stop() error {
	var errs []error
	for _, s := range h.subs {
		if err := s.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every subscription has exited and returns the start and
// socket errors of the ones that failed.
func (h *RunHandle) Wait() error {
	<-h.done
	return errors.Join(h.errs...)
}

// Shutdown stops every subscription and waits for all of them to exit.
func (h *RunHandle) Shutdown() error {
	stopErr := h.Stop()
	return errors.Join(stopErr, h.Wait())
}
