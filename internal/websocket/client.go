package websocket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// ErrClosed is returned by Send and Receive once Close has been called.
var ErrClosed = errors.New("websocket: closed")

type ClientConfig struct {
	URL           string
	DialTimeout   time.Duration
	Headers       http.Header
	Logger        *slog.Logger
	InboundBuffer int
}

type writeRequest struct {
	msg    wsutil.Message
	result chan error
}

// Client is a duplex text frame transport. All writes, including control frame
// replies, go through a single writer goroutine.
type Client struct {
	conn   net.Conn
	src    io.Reader
	logger *slog.Logger

	out chan writeRequest
	in  chan []byte

	done     chan struct{}
	doneOnce sync.Once
	err      error

	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	pending []byte
}

// Connect dials config.URL and starts the read and write loops.
func Connect(ctx context.Context, config ClientConfig) (*Client, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("url", config.URL))

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}

	// handshake timeout only
	hsCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	d := ws.Dialer{
		Timeout: dialTimeout,
		Header:  ws.HandshakeHeaderHTTP(config.Headers),
	}
	conn, br, hs, err := d.Dial(hsCtx, config.URL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", config.URL, err)
	}
	logger.Debug("handshake complete", slog.String("protocol", hs.Protocol))

	return newClient(conn, br, logger, config.InboundBuffer), nil
}

func newClient(conn net.Conn, br *bufio.Reader, logger *slog.Logger, inboundBuffer int) *Client {
	if inboundBuffer <= 0 {
		inboundBuffer = 1000
	}

	// frames sent right after the handshake are already buffered in br
	var src io.Reader = conn
	if br != nil {
		src = br
	}

	c := &Client{
		conn:   conn,
		src:    src,
		logger: logger,
		out:    make(chan writeRequest, 64),
		in:     make(chan []byte, inboundBuffer),
		done:   make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

func (c *Client) finish(err error) {
	c.doneOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case req := <-c.out:
			err := wsutil.WriteClientMessage(c.conn, req.msg.OpCode, req.msg.Payload)
			req.result <- err
			if err != nil {
				c.logger.Error("ws write failed", slog.Any("err", err))
				c.finish(err)
				return
			}
		}
	}
}

func (c *Client) readLoop() {
	for {
		messages, err := wsutil.ReadServerMessage(c.src, nil)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug("ws read failed", slog.Any("err", err))
			}
			c.finish(err)
			return
		}

		for _, msg := range messages {
			if msg.OpCode.IsControl() {
				if c.handleControl(msg) {
					return
				}
				continue
			}

			c.logger.Debug("rcv", slog.Int("len", len(msg.Payload)))
			select {
			case c.in <- msg.Payload:
			case <-c.done:
				return
			}
		}
	}
}

// handleControl answers pings and close frames. It reports whether the peer
// closed the connection.
func (c *Client) handleControl(msg wsutil.Message) bool {
	switch msg.OpCode {
	case ws.OpPing:
		c.enqueue(wsutil.Message{OpCode: ws.OpPong, Payload: msg.Payload})
	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(msg.Payload)
		c.logger.Debug("rcv: close", slog.Int("code", int(code)), slog.String("reason", reason))
		if code == 0 {
			code = ws.StatusNormalClosure
		}
		c.enqueue(wsutil.Message{OpCode: ws.OpClose, Payload: ws.NewCloseFrameBody(code, "")})
		c.finish(io.EOF)
		return true
	}
	return false
}

// enqueue hands a control reply to the writer without waiting for the result.
func (c *Client) enqueue(msg wsutil.Message) {
	select {
	case c.out <- writeRequest{msg: msg, result: make(chan error, 1)}:
	case <-c.done:
	}
}

func (c *Client) write(ctx context.Context, op ws.OpCode, payload []byte) error {
	req := writeRequest{
		msg:    wsutil.Message{OpCode: op, Payload: payload},
		result: make(chan error, 1),
	}
	select {
	case c.out <- req:
	case <-c.done:
		return c.doneErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.result:
		return err
	case <-c.done:
		return c.doneErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) doneErr() error {
	if c.err == nil || errors.Is(c.err, io.EOF) {
		return ErrClosed
	}
	return c.err
}

// Send buffers data until final is set and then writes everything buffered as
// one text frame.
func (c *Client) Send(ctx context.Context, data []byte, final bool) error {
	c.mu.Lock()
	c.pending = append(c.pending, data...)
	if !final {
		c.mu.Unlock()
		return nil
	}
	payload := c.pending
	c.pending = nil
	c.mu.Unlock()

	return c.write(ctx, ws.OpText, payload)
}

// Receive returns the next complete data frame. It returns io.EOF after the peer
// closed the connection.
func (c *Client) Receive(ctx context.Context) ([]byte, bool, error) {
	select {
	case data := <-c.in:
		return data, true, nil
	case <-c.done:
		select {
		case data := <-c.in:
			return data, true, nil
		default:
		}
		if errors.Is(c.err, io.EOF) {
			return nil, false, io.EOF
		}
		return nil, false, c.doneErr()
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Close sends a close frame and closes the connection. It is safe to call more
// than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = c.write(ctx, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, "closing"))
		c.finish(ErrClosed)
		if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			c.closeErr = err
		}
	})
	return c.closeErr
}
