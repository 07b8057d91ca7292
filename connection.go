package rtsession

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/codewandler/rtsession-go/content"
)

type writeRequest struct {
	ctx    context.Context
	data   []byte
	result chan error
}

type inboundResult struct {
	msg ServerMessage
	err error
}

// connection owns one transport. readLoop is the only reader and the only writer
// of session state; writeLoop is the only writer to the transport.
type connection struct {
	transport Transport
	state     *sessionState
	logger    *slog.Logger
	metrics   *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	writes  chan writeRequest
	inbound chan inboundResult

	negotiated     chan struct{}
	negotiatedOnce sync.Once
	readDone       chan struct{}
	readErr        error

	acc      *content.Accumulator
	consumed atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

func newConnection(t Transport, state *sessionState, config *sessionConfig) *connection {
	ctx, cancel := context.WithCancel(context.Background())
	buffer := config.inboundBuffer
	if buffer <= 0 {
		buffer = 1
	}
	c := &connection{
		transport:  t,
		state:      state,
		logger:     config.logger,
		metrics:    config.metrics,
		ctx:        ctx,
		cancel:     cancel,
		writes:     make(chan writeRequest),
		inbound:    make(chan inboundResult, buffer),
		negotiated: make(chan struct{}),
		readDone:   make(chan struct{}),
		acc:        content.NewAccumulator(),
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

func (c *connection) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case req := <-c.writes:
			req.result <- c.transport.Send(req.ctx, req.data, true)
		}
	}
}

// send encodes msg and waits until the writer has handed it to the transport.
func (c *connection) send(ctx context.Context, msg ClientMessage) error {
	data, err := EncodeClientMessage(msg)
	if err != nil {
		return err
	}

	req := writeRequest{ctx: ctx, data: data, result: make(chan error, 1)}
	select {
	case c.writes <- req:
	case <-c.ctx.Done():
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err = <-req.result:
	case <-c.ctx.Done():
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
	if err != nil {
		c.logger.Error("send failed", slog.String("type", clientMessageType(msg)), slog.Any("err", err))
		return fmt.Errorf("send %s: %w", clientMessageType(msg), err)
	}

	c.logger.Debug("sent", slog.String("type", clientMessageType(msg)), slog.Int("len", len(data)))
	c.metrics.recordSent(msg)
	return nil
}

// pump forwards messages from in until it is closed or ctx ends.
func (c *connection) pump(ctx context.Context, in <-chan ClientMessage) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-in:
			if !ok {
				return nil
			}
			if msg == nil {
				return ErrNilMessage
			}
			if err := c.send(ctx, msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *connection) readLoop() {
	defer close(c.inbound)
	defer close(c.readDone)

	var frame []byte
	for {
		data, final, err := c.transport.Receive(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				c.logger.Debug("connection closed by peer")
				c.readErr = io.EOF
				return
			}
			c.logger.Error("receive failed", slog.Any("err", err))
			c.readErr = fmt.Errorf("receive: %w", err)
			c.deliver(inboundResult{err: c.readErr})
			return
		}

		if !final {
			frame = append(frame, data...)
			continue
		}
		if len(frame) > 0 {
			data = append(frame, data...)
			frame = nil
		}

		if !c.deliver(inboundResult{msg: c.dispatch(data)}) {
			return
		}
	}
}

func (c *connection) deliver(r inboundResult) bool {
	select {
	case c.inbound <- r:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// dispatch decodes one frame and applies its side effects before the message is
// handed to the consumer.
func (c *connection) dispatch(frame []byte) ServerMessage {
	msg, err := decodeServerEvent(frame)
	if err != nil {
		c.logger.Error("decode failed, passing frame on raw", slog.Any("err", err))
	}
	c.logger.Debug("rcv", slog.String("kind", string(msg.Kind())), slog.String("event_id", msg.EventID()))
	c.metrics.recordReceived(msg, err != nil)

	switch m := msg.(type) {
	case *SessionMessage:
		c.state.ApplyFullSnapshot(m.Session)
		c.negotiatedOnce.Do(func() { close(c.negotiated) })

	case *OutputMessage:
		key := content.ArgumentKey{ItemID: m.ItemID, Index: m.OutputIndex}
		switch m.Type {
		case KindFunctionCallArgumentsDelta:
			c.acc.AppendResponse(m.ResponseID, key, m.Text)
		case KindFunctionCallArgumentsDone:
			call, ok := c.acc.CompleteCall(key, m.FunctionCall.CallID, m.FunctionCall.Name)
			if ok && m.FunctionCall.RawArguments == "" {
				m.FunctionCall = &call
				m.Text = call.RawArguments
			}
		}

	case *ItemMessage:
		if m.Type == KindOutputItemDone {
			c.materialize(&m.Item, m.OutputIndex)
		}

	case *ResponseMessage:
		if m.Type == KindResponseDone {
			for i := range m.Items {
				c.materialize(&m.Items[i], i)
			}
			c.acc.DiscardResponse(m.ResponseID)
		}
	}
	return msg
}

// materialize fills function calls whose arguments only arrived as deltas.
func (c *connection) materialize(item *content.Item, outputIndex int) {
	for i, part := range item.Parts {
		fc, ok := part.(content.FunctionCall)
		if !ok || fc.RawArguments != "" {
			continue
		}
		key := content.ArgumentKey{ItemID: item.ID, Index: outputIndex}
		if call, ok := c.acc.CompleteCall(key, fc.CallID, fc.Name); ok {
			item.Parts[i] = call
		}
	}
}

func (c *connection) close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.transport.Close()
		c.metrics.recordDisconnect()
	})
	return c.closeErr
}
