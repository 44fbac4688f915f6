package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/protoflow/internal/events"
	"github.com/AaronLay10/protoflow/internal/version"
)

const namespace = "protoflow"

// Metrics holds the collectors served on /metrics. Each server owns its
// own registry so tests can build several.
type Metrics struct {
	registry *prometheus.Registry

	frames   prometheus.Counter
	gestures *prometheus.CounterVec
	edits    *prometheus.CounterVec
}

// NewMetrics registers the runtime collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	start := time.Now()

	m := &Metrics{
		registry: reg,
		frames: factory.NewCounter(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "player", "frames_total"),
			Help: "Number of preview frames composed",
		}),
		gestures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "player", "gestures_total"),
			Help: "Gestures received over HTTP by kind",
		}, []string{"kind"}),
		edits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: prometheus.BuildFQName(namespace, "store", "edits_total"),
			Help: "Inspector edits by entity and outcome",
		}, []string{"entity", "outcome"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        prometheus.BuildFQName(namespace, "", "uptime_seconds"),
		Help:        "Number of seconds since the process started",
		ConstLabels: prometheus.Labels{"version": version.Version},
	}, func() float64 { return time.Since(start).Seconds() })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(namespace, "", "events_total"),
		Help: "Total number of events emitted since startup",
	}, func() float64 { return float64(events.TotalCount()) })

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: prometheus.BuildFQName(namespace, "", "events_dropped_total"),
		Help: "Event deliveries skipped because a live subscriber fell behind",
	}, func() float64 { return float64(events.Dropped()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(namespace, "", "ws_clients"),
		Help: "Number of active event stream subscribers",
	}, func() float64 { return float64(events.SubscriberCount()) })

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(namespace, "", "player_ready"),
		Help: "Whether the prototype is loaded and running (1) or not (0)",
	}, func() float64 {
		readiness.mu.RLock()
		defer readiness.mu.RUnlock()
		return boolGauge(readiness.playerReady)
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(namespace, "", "mqtt_connected"),
		Help: "Whether MQTT broker is connected (1) or not (0)",
	}, func() float64 {
		readiness.mu.RLock()
		defer readiness.mu.RUnlock()
		return boolGauge(readiness.mqttConnected)
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: prometheus.BuildFQName(namespace, "", "postgres_connected"),
		Help: "Whether PostgreSQL is connected (1) or not (0)",
	}, func() float64 {
		readiness.mu.RLock()
		defer readiness.mu.RUnlock()
		return boolGauge(readiness.postgresConnected)
	})

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeGesture(kind string) {
	m.gestures.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeEdit(entity string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	m.edits.WithLabelValues(entity, outcome).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
