// Package subscription streams a single dataref from a simulator host over a
// dedicated UDP socket.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"xpref/internal/metrics"
	"xpref/internal/wire"
)

const maxPacketSize = 1500

var (
	// ErrSocket wraps transport failures that end a subscription.
	ErrSocket = errors.New("subscription socket error")
	// ErrAlreadyStarted is returned by Start on a subscription that left Idle.
	ErrAlreadyStarted = errors.New("subscription already started")
	// ErrInvalidRequest is returned for requests that can never be sent.
	ErrInvalidRequest = errors.New("invalid subscription request")
)

// State is the lifecycle position of a Subscription.
type State int32

const (
	Idle State = iota
	Subscribed
	Streaming
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Subscribed:
		return "subscribed"
	case Streaming:
		return "streaming"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Request names a dataref, the index its samples are tagged with and the
// number of samples per second wanted.
type Request struct {
	Channel   string
	Index     int32
	Frequency int32
}

// Validate reports whether r can be sent as a subscribe request.
func (r Request) Validate() error {
	if r.Channel == "" {
		return fmt.Errorf("%w: empty channel", ErrInvalidRequest)
	}
	if len(r.Channel) > wire.MaxChannelLen {
		return fmt.Errorf("%w: %d bytes, max %d", wire.ErrChannelTooLong, len(r.Channel), wire.MaxChannelLen)
	}
	if r.Frequency <= 0 {
		return fmt.Errorf("%w: frequency %d for %s must be positive", ErrInvalidRequest, r.Frequency, r.Channel)
	}
	return nil
}

// Handler receives every decoded sample. It runs on the subscription's own
// goroutine; a handler that blocks stalls that channel.
type Handler func(channel string, s wire.Sample)

// DiscardHandler drops every sample.
func DiscardHandler(string, wire.Sample) {}

// Options carries the optional collaborators of a Subscription.
type Options struct {
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// Subscription owns one socket subscribed to one (channel, index) pair.
type Subscription struct {
	host    wire.HostInfo
	req     Request
	handler Handler
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	state   State
	conn    *net.UDPConn
	remote  *net.UDPAddr
	done    chan struct{}
	err     error
	stopCtx func() bool
}

// New prepares an idle subscription. A nil handler discards samples.
func New(host wire.HostInfo, req Request, handler Handler, opts Options) *Subscription {
	if handler == nil {
		handler = DiscardHandler
	}
	return &Subscription{
		host:    host,
		req:     req,
		handler: handler,
		log: opts.Log.With().
			Str("channel", req.Channel).
			Int32("index", req.Index).
			Logger(),
		metrics: opts.Metrics,
	}
}

// Subscribe creates and starts a subscription in one step.
func Subscribe(ctx context.Context, host wire.HostInfo, channel string, index, frequency int32, handler Handler, opts Options) (*Subscription, error) {
	s := New(host, Request{Channel: channel, Index: index, Frequency: frequency}, handler, opts)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Unsubscribe stops s and waits for its receive loop to exit.
func Unsubscribe(s *Subscription) error {
	stopErr := s.Stop()
	return errors.Join(stopErr, s.Wait())
}

// Request returns the request s was created with.
func (s *Subscription) Request() Request {
	return s.req
}

// State returns the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start opens the socket, sends the subscribe request and launches the
// receive loop. Cancelling ctx afterwards has the same effect as Stop.
func (s *Subscription) Start(ctx context.Context) error {
	if err := s.req.Validate(); err != nil {
		return err
	}
	frame, err := wire.EncodeRequest(wire.CommandRREF, s.req.Frequency, s.req.Index, s.req.Channel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return ErrAlreadyStarted
	}

	remote, err := net.ResolveUDPAddr("udp", s.host.Addr())
	if err != nil {
		return fmt.Errorf("resolving host %s: %w", s.host.Addr(), err)
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return fmt.Errorf("%w: opening socket: %w", ErrSocket, err)
	}
	if _, err := conn.WriteToUDP(frame, remote); err != nil {
		conn.Close()
		return fmt.Errorf("%w: sending subscribe to %s: %w", ErrSocket, remote, err)
	}

	s.conn = conn
	s.remote = remote
	s.state = Subscribed
	s.done = make(chan struct{})

	s.log.Info().
		Str("host", remote.String()).
		Str("local", conn.LocalAddr().String()).
		Int32("frequency", s.req.Frequency).
		Msg("Subscribed")

	s.metrics.SubscriptionStarted()
	go s.receive(conn, s.done)

	s.stopCtx = context.AfterFunc(ctx, func() {
		if err := s.Stop(); err != nil {
			s.log.Warn().Err(err).Msg("Stop on cancellation failed")
		}
	})
	return nil
}

// Stop asks the host to cease streaming, then closes the socket, which
// unblocks the receive loop. Stopping an idle or stopped subscription is a
// no-op. Use Wait to join the receive loop.
func (s *Subscription) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Stopped:
		return nil
	case Idle:
		s.state = Stopped
		return nil
	}
	s.state = Stopped
	if s.stopCtx != nil {
		s.stopCtx()
	}

	var sendErr error
	frame, err := wire.EncodeRequest(wire.CommandRREF, 0, s.req.Index, s.req.Channel)
	if err == nil {
		_, err = s.conn.WriteToUDP(frame, s.remote)
	}
	if err != nil {
		sendErr = fmt.Errorf("%w: sending unsubscribe: %w", ErrSocket, err)
	}
	s.conn.Close()

	s.log.Info().Msg("Unsubscribed")
	return sendErr
}

// Done is closed once the receive loop has exited. It is nil before Start.
func (s *Subscription) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Wait blocks until the receive loop exits and returns the socket error that
// ended it, or nil when it ended through Stop.
func (s *Subscription) Wait() error {
	done := s.Done()
	if done == nil {
		return nil
	}
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) receive(conn *net.UDPConn, done chan struct{}) {
	defer close(done)
	defer s.metrics.SubscriptionStopped()

	s.mu.Lock()
	if s.state == Subscribed {
		s.state = Streaming
	}
	s.mu.Unlock()

	buf := make([]byte, maxPacketSize)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			s.fail(conn, err)
			return
		}
		s.metrics.FrameReceived(s.req.Channel)

		samples, err := wire.DecodeResponseBatch(buf[:n])
		if err != nil {
			s.metrics.FrameDropped(s.req.Channel)
			s.log.Debug().
				Str("src", src.String()).
				Int("bytes", n).
				Err(err).
				Msg("Dropping frame")
			continue
		}

		for _, sample := range samples {
			s.metrics.Sample(s.req.Channel, sample.Value)
			s.handler(s.req.Channel, sample)
		}
	}
}

// fail records a read error unless it was caused by Stop closing the socket.
func (s *Subscription) fail(conn *net.UDPConn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		return
	}
	s.state = Stopped
	if s.stopCtx != nil {
		s.stopCtx()
	}
	conn.Close()
	s.err = fmt.Errorf("%w: receiving %s: %w", ErrSocket, s.req.Channel, err)

	s.log.Error().Err(err).Msg("Subscription terminated")
}
