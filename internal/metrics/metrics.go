package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server-wide Prometheus collectors.
type Metrics struct {
	OpenConnections prometheus.Gauge
	LiveRooms       prometheus.Gauge
	InboundMessages *prometheus.CounterVec
	Broadcasts      prometheus.Counter
	DroppedSends    prometheus.Counter
	Predownloads    *prometheus.CounterVec
}

// New registers all stage collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stage",
			Name:      "open_connections",
			Help:      "Number of open participant connections.",
		}),
		LiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stage",
			Name:      "live_rooms",
			Help:      "Number of live rooms in the registry.",
		}),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stage",
			Name:      "inbound_messages_total",
			Help:      "Inbound protocol messages by type tag.",
		}, []string{"type"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stage",
			Name:      "broadcast_deliveries_total",
			Help:      "Outbound envelopes enqueued across all recipients.",
		}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stage",
			Name:      "dropped_sends_total",
			Help:      "Envelopes dropped because a recipient's buffer was full or closed.",
		}),
		Predownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stage",
			Name:      "predownloads_total",
			Help:      "Priority-region pre-download attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.OpenConnections,
		m.LiveRooms,
		m.InboundMessages,
		m.Broadcasts,
		m.DroppedSends,
		m.Predownloads,
	)
	return m
}
