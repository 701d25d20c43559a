// Package metrics exposes the server's Prometheus instrumentation.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	collector *Collector
	once      sync.Once
)

// Collector holds the exchange metrics.
type Collector struct {
	OrdersSubmitted *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	TradesTotal     *prometheus.CounterVec
	TradeVolume     *prometheus.CounterVec
	SessionsStarted prometheus.Counter
	WSClients       prometheus.Gauge
	CommandDuration *prometheus.HistogramVec
}

// Get returns the singleton collector.
func Get() *Collector {
	once.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	return &Collector{
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grocer_orders_submitted_total",
			Help: "Orders accepted by the matching engine",
		}, []string{"product", "side"}),
		OrdersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grocer_orders_rejected_total",
			Help: "Orders rejected at validation",
		}, []string{"reason"}),
		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grocer_trades_total",
			Help: "Trades executed",
		}, []string{"product"}),
		TradeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "grocer_trade_volume_total",
			Help: "Units traded",
		}, []string{"product"}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "grocer_sessions_started_total",
			Help: "Game sessions started",
		}),
		WSClients: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "grocer_ws_clients",
			Help: "Connected websocket clients",
		}),
		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grocer_command_duration_seconds",
			Help:    "Command handling latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
	}
}

// Handler serves the /metrics scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
