package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	TablesLive   prometheus.Gauge
	Connections  prometheus.Gauge
	Actions      *prometheus.CounterVec
	Hands        prometheus.Counter
	TimeoutFolds prometheus.Counter
	TablesEnded  *prometheus.CounterVec
}

// NewMetrics creates and registers all instruments.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TablesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentfelt_tables_live",
			Help: "Number of tables with a live runtime.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agentfelt_player_connections",
			Help: "Open player WebSocket connections.",
		}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentfelt_actions_total",
			Help: "Accepted player actions by kind.",
		}, []string{"kind"}),
		Hands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentfelt_hands_total",
			Help: "Completed hands.",
		}),
		TimeoutFolds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agentfelt_timeout_folds_total",
			Help: "Seats folded by the action timeout.",
		}),
		TablesEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agentfelt_tables_ended_total",
			Help: "Tables ended by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(
		m.TablesLive, m.Connections, m.Actions, m.Hands, m.TimeoutFolds, m.TablesEnded,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
