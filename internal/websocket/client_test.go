package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	received chan string
	send     chan string
	closing  chan struct{}
	auth     chan string
}

func newTestServer(t *testing.T) *testServer {
	s := &testServer{
		received: make(chan string, 16),
		send:     make(chan string, 16),
		closing:  make(chan struct{}),
		auth:     make(chan string, 1),
	}
	upgrader := gws.Upgrader{}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.auth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				s.received <- string(data)
			}
		}()

		for {
			select {
			case <-gone:
				return
			case msg := <-s.send:
				if err := conn.WriteMessage(gws.TextMessage, []byte(msg)); err != nil {
					return
				}
			case <-s.closing:
				for len(s.send) > 0 {
					_ = conn.WriteMessage(gws.TextMessage, []byte(<-s.send))
				}
				_ = conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, "bye"))
				time.Sleep(50 * time.Millisecond)
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func connect(t *testing.T, s *testServer) *Client {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, ClientConfig{
		URL:         s.wsURL(),
		DialTimeout: time.Second,
		Headers:     http.Header{"Authorization": []string{"Bearer test"}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestClient_SendAndReceive(t *testing.T) {
	s := newTestServer(t)
	client := connect(t, s)
	require.Equal(t, "Bearer test", <-s.auth)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Send(ctx, []byte(`{"type":`), false))
	require.NoError(t, client.Send(ctx, []byte(`"response.create"}`), true))

	select {
	case got := <-s.received:
		require.Equal(t, `{"type":"response.create"}`, got)
	case <-ctx.Done():
		t.Fatal("server did not receive frame")
	}

	s.send <- `{"type":"session.created"}`
	s.send <- `{"type":"session.updated"}`

	data, final, err := client.Receive(ctx)
	require.NoError(t, err)
	require.True(t, final)
	require.Equal(t, `{"type":"session.created"}`, string(data))

	data, _, err = client.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"type":"session.updated"}`, string(data))
}

func TestClient_PeerClose(t *testing.T) {
	s := newTestServer(t)
	client := connect(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.send <- `{"type":"error"}`
	close(s.closing)

	data, _, err := client.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, `{"type":"error"}`, string(data))

	_, _, err = client.Receive(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	s := newTestServer(t)
	client := connect(t, s)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.ErrorIs(t, client.Send(ctx, []byte(`{}`), true), ErrClosed)

	_, _, err := client.Receive(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestClient_ReceiveHonorsContext(t *testing.T) {
	s := newTestServer(t)
	client := connect(t, s)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := client.Receive(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
