package rtsession

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/codewandler/rtsession-go/internal/websocket"
)

const (
	ApiKeyEnvVarNameShort = "OPENAI_KEY"
	ApiKeyEnvVarNameLong  = "OPENAI_API_KEY"

	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-realtime"
)

// Transport is a duplex frame transport. A frame is complete once a chunk with
// final set has been sent or received.
type Transport interface {
	Send(ctx context.Context, data []byte, final bool) error
	Receive(ctx context.Context) ([]byte, bool, error)
	Close() error
}

// DialFunc opens a new transport for one connection.
type DialFunc func(ctx context.Context) (Transport, error)

type sessionConfig struct {
	model         string
	apiKey        string
	url           string
	headers       http.Header
	dialTimeout   time.Duration
	inboundBuffer int
	logger        *slog.Logger
	metrics       *Metrics
	dial          DialFunc
	session       *SessionOptions
}

func (c *sessionConfig) validate() error {
	if c.dial != nil {
		return nil
	}
	if c.apiKey == "" {
		return fmt.Errorf("missing api key")
	}
	if c.model == "" {
		return fmt.Errorf("missing model")
	}
	if _, err := url.Parse(c.url); err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	return nil
}

func (c *sessionConfig) dialer() DialFunc {
	if c.dial != nil {
		return c.dial
	}
	return c.dialWebsocket
}

func (c *sessionConfig) dialWebsocket(ctx context.Context) (Transport, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("model", c.model)
	u.RawQuery = q.Encode()

	headers := c.headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	headers.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	client, err := websocket.Connect(ctx, websocket.ClientConfig{
		URL:           u.String(),
		DialTimeout:   c.dialTimeout,
		Headers:       headers,
		Logger:        c.logger,
		InboundBuffer: c.inboundBuffer,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

type Option func(*sessionConfig)

func WithModel(model string) Option {
	return func(o *sessionConfig) {
		o.model = model
	}
}

func WithKey(apiKey string) Option {
	return func(o *sessionConfig) {
		o.apiKey = apiKey
	}
}

// WithEnvKey reads the api key from the first non-empty environment variable.
func WithEnvKey(vars ...string) Option {
	return func(o *sessionConfig) {
		for _, envVarName := range vars {
			if k := os.Getenv(envVarName); k != "" {
				o.apiKey = k
				return
			}
		}
	}
}

func WithURL(u string) Option {
	return func(o *sessionConfig) {
		o.url = u
	}
}

func WithHeader(key, value string) Option {
	return func(o *sessionConfig) {
		if o.headers == nil {
			o.headers = http.Header{}
		}
		o.headers.Add(key, value)
	}
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *sessionConfig) {
		o.dialTimeout = d
	}
}

// WithInboundBuffer sets how many decoded messages are buffered before the
// reader waits for the consumer.
func WithInboundBuffer(n int) Option {
	return func(o *sessionConfig) {
		o.inboundBuffer = n
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *sessionConfig) {
		o.logger = logger
	}
}

func WithDefaultLogger() Option {
	return WithLogger(slog.Default())
}

func WithMetrics(m *Metrics) Option {
	return func(o *sessionConfig) {
		o.metrics = m
	}
}

// WithDialer replaces the websocket dialer. Api key and model are not required
// then.
func WithDialer(dial DialFunc) Option {
	return func(o *sessionConfig) {
		o.dial = dial
	}
}

// WithTransport connects over an already open transport.
func WithTransport(t Transport) Option {
	return WithDialer(func(context.Context) (Transport, error) {
		return t, nil
	})
}

// WithSessionOptions sends a session.update right after connecting.
func WithSessionOptions(opts SessionOptions) Option {
	return func(o *sessionConfig) {
		o.session = &opts
	}
}

func WithOptions(opts ...Option) Option {
	return func(o *sessionConfig) {
		for _, opt := range opts {
			opt(o)
		}
	}
}

func withDefaults() Option {
	return WithOptions(
		WithLogger(slog.New(slog.DiscardHandler)),
		WithURL(DefaultURL),
		WithModel(DefaultModel),
		WithDialTimeout(10*time.Second),
		WithInboundBuffer(256),
		WithEnvKey(ApiKeyEnvVarNameShort, ApiKeyEnvVarNameLong),
	)
}
