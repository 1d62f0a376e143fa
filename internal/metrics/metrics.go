package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fargoat"

// Metrics holds the service collectors. A nil *Metrics is valid and
// records nothing, so components can be built without a registry.
type Metrics struct {
	feedPublishes   *prometheus.CounterVec
	feedDeliveries  *prometheus.CounterVec
	generatorTicks  *prometheus.CounterVec
	generators      prometheus.Gauge
	chartPolls      *prometheus.CounterVec
	questSessions   prometheus.Gauge
	questSubmission *prometheus.CounterVec
	wsClients       prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		feedPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "publishes_total",
			Help:      "Values published per channel.",
		}, []string{"channel"}),
		feedDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "deliveries_total",
			Help:      "Handler invocations per channel.",
		}, []string{"channel"}),
		generatorTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "generator_ticks_total",
			Help:      "Synthetic values generated per channel.",
		}, []string{"channel"}),
		generators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "generators_active",
			Help:      "Channels with an active generator.",
		}),
		chartPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "chart_polls_total",
			Help:      "Chart data polls by result.",
		}, []string{"result"}),
		questSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quest",
			Name:      "sessions_active",
			Help:      "Open wizard sessions.",
		}),
		questSubmission: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quest",
			Name:      "submissions_total",
			Help:      "Quest submissions by result.",
		}, []string{"result"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "websocket_clients",
			Help:      "Connected feed websocket clients.",
		}),
	}

	collectors := []prometheus.Collector{
		m.feedPublishes,
		m.feedDeliveries,
		m.generatorTicks,
		m.generators,
		m.chartPolls,
		m.questSessions,
		m.questSubmission,
		m.wsClients,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordPublish counts one publish and the handlers it reached
func (m *Metrics) RecordPublish(channel string, delivered int) {
	if m == nil {
		return
	}
	m.feedPublishes.WithLabelValues(channel).Inc()
	m.feedDeliveries.WithLabelValues(channel).Add(float64(delivered))
}

func (m *Metrics) RecordGeneratorTick(channel string) {
	if m == nil {
		return
	}
	m.generatorTicks.WithLabelValues(channel).Inc()
}

func (m *Metrics) SetGenerators(n int) {
	if m == nil {
		return
	}
	m.generators.Set(float64(n))
}

// RecordChartPoll counts a poll; result is "success" or "failure"
func (m *Metrics) RecordChartPoll(ok bool) {
	if m == nil {
		return
	}
	m.chartPolls.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.questSessions.Set(float64(n))
}

func (m *Metrics) RecordSubmission(ok bool) {
	if m == nil {
		return
	}
	m.questSubmission.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) AddWebsocketClients(delta int) {
	if m == nil {
		return
	}
	m.wsClients.Add(float64(delta))
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
