package monitoring

import (
	"errors"
	"time"

	"meetrelay/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge

	// Counters
	connectionsTotal  prometheus.Counter
	messagesRelayed   *prometheus.CounterVec
	deliveriesTotal   *prometheus.CounterVec
	deliveriesDropped *prometheus.CounterVec
	messagesRejected  *prometheus.CounterVec
	presenceEvents    *prometheus.CounterVec
	joinFailures      *prometheus.CounterVec
	meetingsCreated   prometheus.Counter

	// Histograms
	storeLatency *prometheus.HistogramVec
}

// NewPrometheusCollector registers the relay metrics with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		connectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meetrelay_connections_active",
			Help: "Number of open signaling connections",
		}),

		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meetrelay_rooms_active",
			Help: "Number of meeting rooms with at least one member",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetrelay_connections_total",
			Help: "Total number of signaling connections accepted",
		}),

		messagesRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetrelay_messages_relayed_total",
			Help: "Signaling messages relayed, by inbound event type",
		}, []string{"type"}),

		deliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetrelay_deliveries_total",
			Help: "Messages enqueued to recipients, by outbound event type",
		}, []string{"type"}),

		deliveriesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetrelay_deliveries_dropped_total",
			Help: "Messages dropped before reaching a recipient",
		}, []string{"reason"}),

		messagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetrelay_messages_rejected_total",
			Help: "Inbound messages ignored by the relay",
		}, []string{"reason"}),

		presenceEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetrelay_presence_events_total",
			Help: "Presence notifications emitted",
		}, []string{"type"}),

		joinFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "meetrelay_join_failures_total",
			Help: "Rejected join-meeting requests",
		}, []string{"reason"}),

		meetingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "meetrelay_meetings_created_total",
			Help: "Meetings created through the directory API",
		}),

		storeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meetrelay_store_operation_duration_seconds",
			Help:    "Latency of meeting directory store calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		}, []string{"operation", "result"}),
	}
}

func (p *PrometheusCollector) ConnectionOpened() {
	p.connectionsTotal.Inc()
	p.connectionsActive.Inc()
}

func (p *PrometheusCollector) ConnectionClosed() {
	p.connectionsActive.Dec()
}

func (p *PrometheusCollector) RoomOpened() {
	p.roomsActive.Inc()
}

func (p *PrometheusCollector) RoomClosed() {
	p.roomsActive.Dec()
}

func (p *PrometheusCollector) MessageRelayed(eventType string) {
	p.messagesRelayed.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) MessageDelivered(eventType string) {
	p.deliveriesTotal.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) DeliveryDropped(reason string) {
	p.deliveriesDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) MessageRejected(reason string) {
	p.messagesRejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) PresenceEmitted(eventType string) {
	p.presenceEvents.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) JoinFailed(reason string) {
	p.joinFailures.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) MeetingCreated() {
	p.meetingsCreated.Inc()
}

// ObserveStoreOperation implements reliability.StoreObserver.
func (p *PrometheusCollector) ObserveStoreOperation(operation string, duration time.Duration, err error) {
	p.storeLatency.WithLabelValues(operation, storeResult(err)).Observe(duration.Seconds())
}

func storeResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrMeetingNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrMeetingExists):
		return "exists"
	default:
		return "error"
	}
}
