package telemetry

import "github.com/prometheus/client_golang/prometheus"

const namespace string = "skillswap_signaling"

var (
	promConnections   prometheus.Gauge
	promRooms         prometheus.Gauge
	promReadyTotal    prometheus.Counter
	promRelayedTotal  *prometheus.CounterVec
	promRejectedJoins *prometheus.CounterVec
	promDroppedTotal  prometheus.Counter
	promNotifiedTotal prometheus.Counter
)

func init() {
	promConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "connections",
		Help:      "Live WebSocket connections.",
	})

	promRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "active",
		Help:      "Rooms with at least one member.",
	})

	promReadyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "ready_total",
		Help:      "both-ready signals emitted.",
	})

	promRelayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Messages fanned out to room members.",
		},
		[]string{"type"},
	)

	promRejectedJoins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "room",
			Name:      "rejected_joins_total",
		},
		[]string{"reason"},
	)

	promDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "dropped_messages_total",
		Help:      "Outbound messages dropped on a full send queue.",
	})

	promNotifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notify",
		Name:      "delivered_total",
	})

	prometheus.MustRegister(
		promConnections,
		promRooms,
		promReadyTotal,
		promRelayedTotal,
		promRejectedJoins,
		promDroppedTotal,
		promNotifiedTotal,
	)
}

// ConnectionOpened counts a registered connection.
func ConnectionOpened() {
	promConnections.Inc()
}

// ConnectionClosed counts a removed connection.
func ConnectionClosed() {
	promConnections.Dec()
}

// RoomCreated counts a room that got its first member.
func RoomCreated() {
	promRooms.Inc()
}

// RoomRemoved counts a room that lost its last member.
func RoomRemoved() {
	promRooms.Dec()
}

// ReadySignaled counts a both-ready broadcast.
func ReadySignaled() {
	promReadyTotal.Inc()
}

// MessageRelayed counts one relayed event and its receivers.
func MessageRelayed(eventType string, receivers int) {
	promRelayedTotal.WithLabelValues(eventType).Add(float64(receivers))
}

// JoinRejected counts a refused join by reason.
func JoinRejected(reason string) {
	promRejectedJoins.WithLabelValues(reason).Inc()
}

// MessageDropped counts a message lost to a full outbound queue.
func MessageDropped() {
	promDroppedTotal.Inc()
}

// NotificationDelivered counts the connections a notification reached.
func NotificationDelivered(receivers int) {
	promNotifiedTotal.Add(float64(receivers))
}
