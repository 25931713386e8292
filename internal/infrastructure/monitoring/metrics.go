package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Transport metrics
	ConnectsTotal   prometheus.Counter
	ReconnectsTotal prometheus.Counter
	TransportState  prometheus.Gauge // numeric transport.State of the active channel
	FramesTotal     *prometheus.CounterVec
	SendFailures    prometheus.Counter

	// Stream metrics
	MessagesFinalized prometheus.Counter
	StreamsAborted    prometheus.Counter
	ChunkBytes        prometheus.Histogram

	// Directory metrics
	SessionsCached prometheus.Gauge
	APICalls       *prometheus.CounterVec
	APIErrors      *prometheus.CounterVec

	// Controller metrics
	SessionSwitches   prometheus.Counter
	LateEventsDropped prometheus.Counter
}

// New creates a metrics collector registered against reg. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry
// so parallel tests don't collide on metric names.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ConnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "interviewchat_transport_connects_total",
			Help: "Successful channel connections",
		}),
		ReconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "interviewchat_transport_reconnects_total",
			Help: "Reconnection attempts after abnormal closure",
		}),
		TransportState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "interviewchat_transport_state",
			Help: "Current transport state (0=disconnected 1=connecting 2=connected 3=reconnecting 4=closed)",
		}),
		FramesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewchat_frames_total",
			Help: "Inbound protocol frames by type",
		}, []string{"type"}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "interviewchat_send_failures_total",
			Help: "Outbound sends rejected because the channel was not connected",
		}),
		MessagesFinalized: factory.NewCounter(prometheus.CounterOpts{
			Name: "interviewchat_messages_finalized_total",
			Help: "Assistant messages finalized from completed streams",
		}),
		StreamsAborted: factory.NewCounter(prometheus.CounterOpts{
			Name: "interviewchat_streams_aborted_total",
			Help: "In-flight streams discarded by error or session switch",
		}),
		ChunkBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "interviewchat_chunk_bytes",
			Help:    "Size of inbound chunk payloads in bytes",
			Buckets: []float64{8, 32, 128, 512, 2048, 8192},
		}),
		SessionsCached: factory.NewGauge(prometheus.GaugeOpts{
			Name: "interviewchat_sessions_cached",
			Help: "Sessions currently held in the directory cache",
		}),
		APICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewchat_api_calls_total",
			Help: "REST collaborator calls by operation",
		}, []string{"operation"}),
		APIErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interviewchat_api_errors_total",
			Help: "Failed REST collaborator calls by operation",
		}, []string{"operation"}),
		SessionSwitches: factory.NewCounter(prometheus.CounterOpts{
			Name: "interviewchat_session_switches_total",
			Help: "Completed session switches",
		}),
		LateEventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "interviewchat_late_events_dropped_total",
			Help: "Events discarded because their generation was stale",
		}),
	}
}

// NewNop creates an unregistered collector for tests that don't inspect
// metric values.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
