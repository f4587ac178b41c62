package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsNamespace          = "mcp_box"
	MetricsSubsystemSystem    = "system"
	MetricsSubsystemGate      = "gate"
	MetricsSubsystemDiscovery = "discovery"
	MetricsSubsystemBox       = "box"

	MetricsVersionLabel = "version"

	OutcomeAllowed = "allowed"
	OutcomeExempt  = "exempt"
	OutcomeDenied  = "denied"
	OutcomeError   = "error"
	OutcomeSuccess = "success"
)

// Metrics holds the Prometheus collectors of the server on a private
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	serverInfo prometheus.Gauge

	gateDecisions    *prometheus.CounterVec
	discoveryFetches *prometheus.CounterVec
	clientBuilds     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them.
func NewMetrics(version string) *Metrics {
	m := &Metrics{}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: MetricsNamespace,
	}))
	m.registry.MustRegister(collectors.NewGoCollector())

	m.serverInfo = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   MetricsNamespace,
		Subsystem:   MetricsSubsystemSystem,
		Name:        "server_info",
		Help:        "The server version.",
		ConstLabels: prometheus.Labels{MetricsVersionLabel: version},
	})
	m.serverInfo.Set(1)
	m.registry.MustRegister(m.serverInfo)

	m.gateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemGate,
			Name:      "decisions_total",
			Help:      "The total number of inbound requests decided by the auth gate.",
		},
		[]string{"mode", "outcome"},
	)
	m.registry.MustRegister(m.gateDecisions)

	m.discoveryFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemDiscovery,
			Name:      "upstream_fetches_total",
			Help:      "The total number of authorization server metadata fetches.",
		},
		[]string{"outcome"},
	)
	m.registry.MustRegister(m.discoveryFetches)

	m.clientBuilds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystemBox,
			Name:      "client_builds_total",
			Help:      "The total number of shared Box client builds.",
		},
		[]string{"mode", "outcome"},
	)
	m.registry.MustRegister(m.clientBuilds)

	return m
}

// GetRegistry returns the private registry.
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveGateDecision(mode, outcome string) {
	if m != nil {
		m.gateDecisions.WithLabelValues(mode, outcome).Inc()
	}
}

func (m *Metrics) ObserveDiscoveryFetch(outcome string) {
	if m != nil {
		m.discoveryFetches.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveClientBuild(mode string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.clientBuilds.WithLabelValues(mode, outcome).Inc()
}
