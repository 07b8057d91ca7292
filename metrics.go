package rtsession

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of one or more sessions. A nil *Metrics
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived  *prometheus.CounterVec
	FramesSent      *prometheus.CounterVec
	DecodeFallbacks prometheus.Counter

	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  *prometheus.CounterVec

	TokensTotal     *prometheus.CounterVec
	AudioBytesTotal *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance with all metrics registered on its own
// registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "rtsession"
	}

	registry := prometheus.NewRegistry()

	framesReceived := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by decoded message kind",
		},
		[]string{"kind"},
	)

	framesSent := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames by event type",
		},
		[]string{"type"},
	)

	decodeFallbacks := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_fallbacks_total",
			Help:      "Known inbound frames that could not be decoded and were passed on raw",
		},
	)

	connectionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open realtime connections",
		},
	)

	connectionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connection attempts by outcome",
		},
		[]string{"status"},
	)

	tokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Tokens reported by completed responses",
		},
		[]string{"direction"},
	)

	audioBytesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Raw audio bytes sent and received",
		},
		[]string{"direction"},
	)

	registry.MustRegister(
		framesReceived,
		framesSent,
		decodeFallbacks,
		connectionsActive,
		connectionsTotal,
		tokensTotal,
		audioBytesTotal,
	)

	return &Metrics{
		registry:          registry,
		FramesReceived:    framesReceived,
		FramesSent:        framesSent,
		DecodeFallbacks:   decodeFallbacks,
		ConnectionsActive: connectionsActive,
		ConnectionsTotal:  connectionsTotal,
		TokensTotal:       tokensTotal,
		AudioBytesTotal:   audioBytesTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, e.g. to gather in tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) recordReceived(msg ServerMessage, fallback bool) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(string(msg.Kind())).Inc()
	if fallback {
		m.DecodeFallbacks.Inc()
	}

	switch msg := msg.(type) {
	case *OutputMessage:
		if len(msg.Audio) > 0 {
			m.AudioBytesTotal.WithLabelValues("output").Add(float64(len(msg.Audio)))
		}
	case *ResponseMessage:
		if msg.Usage != nil {
			if msg.Usage.InputTokens > 0 {
				m.TokensTotal.WithLabelValues("input").Add(float64(msg.Usage.InputTokens))
			}
			if msg.Usage.OutputTokens > 0 {
				m.TokensTotal.WithLabelValues("output").Add(float64(msg.Usage.OutputTokens))
			}
		}
	}
}

func (m *Metrics) recordSent(msg ClientMessage) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(clientMessageType(msg)).Inc()
	if a, ok := msg.(*InputAudioBufferAppend); ok && a != nil {
		m.AudioBytesTotal.WithLabelValues("input").Add(float64(len(a.Audio)))
	}
}

func (m *Metrics) recordConnect(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.ConnectionsTotal.WithLabelValues("error").Inc()
		return
	}
	m.ConnectionsTotal.WithLabelValues("success").Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) recordDisconnect() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}
