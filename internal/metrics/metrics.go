package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records what the signaling server is doing. The hub calls these
// from its own goroutine; implementations must be safe for that plus scrapes.
type Collector interface {
	ClientConnected()
	ClientDisconnected()
	RoomCreated()
	RoomDeleted()
	MessageReceived(msgType string, sizeBytes int)
	MessageDelivered(msgType string, count int)
	ErrorSent(code string)
}

// Noop satisfies Collector for tests and metric-less deployments.
type Noop struct{}

func (Noop) ClientConnected()             {}
func (Noop) ClientDisconnected()          {}
func (Noop) RoomCreated()                 {}
func (Noop) RoomDeleted()                 {}
func (Noop) MessageReceived(string, int)  {}
func (Noop) MessageDelivered(string, int) {}
func (Noop) ErrorSent(string)             {}

// Prometheus implements Collector on the default registry.
type Prometheus struct {
	activeClients     prometheus.Gauge
	activeRooms       prometheus.Gauge
	messagesReceived  *prometheus.CounterVec
	messagesDelivered *prometheus.CounterVec
	messageSize       *prometheus.HistogramVec
	errorsSent        *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	return &Prometheus{
		activeClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streeem_active_clients",
			Help: "Number of connected websocket clients",
		}),
		activeRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "streeem_active_rooms",
			Help: "Number of live rooms",
		}),
		messagesReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streeem_messages_received_total",
				Help: "Inbound envelopes by type",
			},
			[]string{"message_type"},
		),
		messagesDelivered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streeem_messages_delivered_total",
				Help: "Outbound envelope deliveries by type",
			},
			[]string{"message_type"},
		),
		messageSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streeem_message_size_bytes",
				Help:    "Size of inbound envelopes",
				Buckets: prometheus.ExponentialBuckets(64, 2, 10),
			},
			[]string{"message_type"},
		),
		errorsSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streeem_errors_sent_total",
				Help: "Error envelopes sent by code",
			},
			[]string{"code"},
		),
	}
}

func (p *Prometheus) ClientConnected()    { p.activeClients.Inc() }
func (p *Prometheus) ClientDisconnected() { p.activeClients.Dec() }
func (p *Prometheus) RoomCreated()        { p.activeRooms.Inc() }
func (p *Prometheus) RoomDeleted()        { p.activeRooms.Dec() }

func (p *Prometheus) MessageReceived(msgType string, sizeBytes int) {
	p.messagesReceived.WithLabelValues(msgType).Inc()
	p.messageSize.WithLabelValues(msgType).Observe(float64(sizeBytes))
}

func (p *Prometheus) MessageDelivered(msgType string, count int) {
	p.messagesDelivered.WithLabelValues(msgType).Add(float64(count))
}

func (p *Prometheus) ErrorSent(code string) {
	p.errorsSent.WithLabelValues(code).Inc()
}

// Handler serves the scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
