package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_connections_active",
		Help: "Number of live websocket connections.",
	})

	MessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_messages_relayed_total",
		Help: "Messages persisted and relayed.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Outbound events dropped because a client send buffer was full.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
