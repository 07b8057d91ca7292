// Package rtsession runs a realtime conversation session over one persistent
// duplex connection. It decodes the server event stream into provider-neutral
// ServerMessage values, tracks the negotiated session configuration and encodes
// provider-neutral ClientMessage commands.
package rtsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	ErrNotConnected       = errors.New("rtsession: not connected")
	ErrClosed             = errors.New("rtsession: closed")
	ErrStreamConsumed     = errors.New("rtsession: stream already consumed")
	ErrNilMessage         = errors.New("rtsession: nil message")
	ErrUnsupportedMessage = errors.New("rtsession: unsupported message")
	ErrInvalidItem        = errors.New("rtsession: invalid item")
)

// StreamingClient is the provider-neutral capability implemented by Session.
type StreamingClient interface {
	GetStreamingResponse(ctx context.Context, in <-chan ClientMessage) iter.Seq2[ServerMessage, error]
	GetService(kind ServiceKind, key any) any
}

var _ StreamingClient = (*Session)(nil)

type ServiceKind int

const (
	// ServiceSession resolves to the *Session itself.
	ServiceSession ServiceKind = iota
	// ServiceOptions resolves to the current *SessionOptions snapshot.
	ServiceOptions
	// ServiceTransport resolves to the Transport of the open connection.
	ServiceTransport
	ServiceLogger
	ServiceMetrics
)

// Session is a realtime session. Connect opens the connection,
// GetStreamingResponse consumes it and Close disposes the session.
type Session struct {
	config *sessionConfig
	logger *slog.Logger
	state  sessionState

	mu       sync.Mutex
	conn     *connection
	disposed atomic.Bool
}

func New(opts ...Option) *Session {
	config := &sessionConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	return &Session{
		config: config,
		logger: config.logger,
	}
}

// Connect opens the transport. It returns false without error when ctx is
// already canceled and true without dialing again when already connected.
func (s *Session) Connect(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if s.disposed.Load() {
		return false, ErrClosed
	}
	if err := s.config.validate(); err != nil {
		return false, fmt.Errorf("invalid config: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed.Load() {
		return false, ErrClosed
	}
	if s.conn != nil {
		return true, nil
	}

	t, err := s.config.dialer()(ctx)
	s.config.metrics.recordConnect(err)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.logger.Error("connect failed", slog.Any("err", err))
		return false, fmt.Errorf("connect: %w", err)
	}

	s.state.reset()
	conn := newConnection(t, &s.state, s.config)

	if s.config.session != nil {
		if err := conn.send(ctx, &SessionUpdate{Options: *s.config.session}); err != nil {
			_ = conn.close()
			return false, fmt.Errorf("initial session update: %w", err)
		}
	}

	s.conn = conn
	s.logger.Info("connected")
	return true, nil
}

func (s *Session) active() (*connection, error) {
	if s.disposed.Load() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil, ErrNotConnected
	}
	return s.conn, nil
}

// release closes conn and forgets it if it is still the active connection.
func (s *Session) release(conn *connection) {
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	s.mu.Unlock()

	if err := conn.close(); err != nil {
		s.logger.Debug("transport close failed", slog.Any("err", err))
	}
}

// InjectClientMessage sends one message outside of any streaming sequence. It
// returns nil without sending when ctx is already canceled.
func (s *Session) InjectClientMessage(ctx context.Context, msg ClientMessage) error {
	if msg == nil {
		return ErrNilMessage
	}
	if ctx.Err() != nil {
		return nil
	}
	conn, err := s.active()
	if err != nil {
		return err
	}
	return conn.send(ctx, msg)
}

// GetStreamingResponse yields server messages in arrival order while forwarding
// every message received on in. in may be nil.
//
// The sequence can be consumed once per connection. Ending it, by breaking out
// of the loop or canceling ctx, stops forwarding and closes the transport. A
// ctx canceled before iteration starts yields nothing. Errors are yielded as the
// last element.
func (s *Session) GetStreamingResponse(ctx context.Context, in <-chan ClientMessage) iter.Seq2[ServerMessage, error] {
	return func(yield func(ServerMessage, error) bool) {
		if ctx.Err() != nil {
			return
		}
		conn, err := s.active()
		if err != nil {
			yield(nil, err)
			return
		}
		if !conn.consumed.CompareAndSwap(false, true) {
			yield(nil, ErrStreamConsumed)
			return
		}
		defer s.release(conn)

		streamCtx, cancel := context.WithCancel(ctx)
		g, gctx := errgroup.WithContext(streamCtx)
		defer func() {
			cancel()
			_ = g.Wait()
		}()

		if in != nil {
			g.Go(func() error {
				return conn.pump(gctx, in)
			})
		}

		for {
			select {
			case r, ok := <-conn.inbound:
				if !ok {
					return
				}
				if !yield(r.msg, r.err) || r.err != nil {
					return
				}
			case <-gctx.Done():
				if err := ctx.Err(); err != nil {
					yield(nil, err)
					return
				}
				if err := g.Wait(); err != nil {
					yield(nil, fmt.Errorf("outbound: %w", err))
				}
				return
			}
		}
	}
}

// CreateSession connects and waits for the first negotiated session snapshot.
// It returns nil without error when ctx ends before negotiation completes.
func (s *Session) CreateSession(ctx context.Context) (*SessionOptions, error) {
	ok, err := s.Connect(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	conn, err := s.active()
	if err != nil {
		return nil, err
	}

	select {
	case <-conn.negotiated:
		return s.state.Read(), nil
	case <-conn.readDone:
		// a snapshot may have arrived right before the connection ended
		select {
		case <-conn.negotiated:
			return s.state.Read(), nil
		default:
		}
		if conn.readErr != nil && !errors.Is(conn.readErr, io.EOF) {
			return nil, conn.readErr
		}
		return nil, ErrNotConnected
	case <-ctx.Done():
		return nil, nil
	}
}

// Options returns the latest negotiated session configuration, or nil before
// negotiation and after Close.
func (s *Session) Options() *SessionOptions {
	if s.disposed.Load() {
		return nil
	}
	return s.state.Read()
}

// GetService returns the service of the given kind or nil. Keyed services are
// not supported and yield nil.
func (s *Session) GetService(kind ServiceKind, key any) any {
	if key != nil || s.disposed.Load() {
		return nil
	}
	switch kind {
	case ServiceSession:
		return s
	case ServiceOptions:
		if o := s.state.Read(); o != nil {
			return o
		}
	case ServiceTransport:
		if conn, err := s.active(); err == nil {
			return conn.transport
		}
	case ServiceLogger:
		return s.logger
	case ServiceMetrics:
		if s.config.metrics != nil {
			return s.config.metrics
		}
	}
	return nil
}

// Close disposes the session and its connection. Further calls are no-ops.
func (s *Session) Close() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	s.state.reset()
	if conn == nil {
		return nil
	}
	s.logger.Info("closing")
	return conn.close()
}
