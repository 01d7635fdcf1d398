package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"capgate/internal/domain"
)

type PrometheusMetrics struct {
	requestDuration *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	contextWeight   prometheus.Gauge
	contextMax      prometheus.Gauge
	contextPressure prometheus.Gauge
	activeTools     prometheus.Gauge
	activeLayers    prometheus.Gauge
	activations     *prometheus.CounterVec
	evictions       *prometheus.CounterVec
	overflows       prometheus.Counter
	auditFlushes    *prometheus.CounterVec
	auditFlushed    prometheus.Counter
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capgate_request_duration_seconds",
				Help:    "Duration of registry requests in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"operation"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capgate_requests_total",
				Help: "Total number of registry requests",
			},
			[]string{"operation", "status"},
		),
		contextWeight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capgate_context_weight",
			Help: "Estimated tokens of the active tool set",
		}),
		contextMax: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capgate_context_max_weight",
			Help: "Configured context budget in tokens",
		}),
		contextPressure: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capgate_context_pressure",
			Help: "Context pressure level (0 normal, 1 warning, 2 critical)",
		}),
		activeTools: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capgate_active_tools",
			Help: "Current number of active tools",
		}),
		activeLayers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capgate_active_layers",
			Help: "Current number of active layers",
		}),
		activations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capgate_activations_total",
				Help: "Total number of tool activation changes",
			},
			[]string{"kind"},
		),
		evictions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capgate_evictions_total",
				Help: "Total number of tools evicted to relieve context pressure",
			},
			[]string{"strategy"},
		),
		overflows: factory.NewCounter(prometheus.CounterOpts{
			Name: "capgate_budget_overflows_total",
			Help: "Total number of optimization passes that left the budget exceeded",
		}),
		auditFlushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capgate_audit_flush_total",
				Help: "Total number of audit flush attempts",
			},
			[]string{"status"},
		),
		auditFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "capgate_audit_entries_persisted_total",
			Help: "Total number of audit entries written to durable storage",
		}),
	}
}

func (p *PrometheusMetrics) ObserveRequest(metric domain.RequestMetric) {
	status := metric.Status
	if status == "" {
		status = domain.RequestStatusSuccess
	}
	p.requests.WithLabelValues(metric.Operation, string(status)).Inc()
	p.requestDuration.WithLabelValues(metric.Operation).Observe(metric.Duration.Seconds())
}

func (p *PrometheusMetrics) ObserveBudget(state domain.BudgetState) {
	p.contextWeight.Set(float64(state.TotalWeight))
	p.contextMax.Set(float64(state.MaxWeight))
	p.contextPressure.Set(float64(state.Pressure.Level()))
	p.activeTools.Set(float64(state.ActiveItems))
}

func (p *PrometheusMetrics) ObserveActivations(kind domain.AuditKind, count int) {
	if count <= 0 {
		return
	}
	p.activations.WithLabelValues(string(kind)).Add(float64(count))
}

func (p *PrometheusMetrics) ObserveEvictions(strategy domain.StrategyKind, count int) {
	if count <= 0 {
		return
	}
	p.evictions.WithLabelValues(string(strategy)).Add(float64(count))
}

func (p *PrometheusMetrics) ObserveBudgetOverflow() {
	p.overflows.Inc()
}

func (p *PrometheusMetrics) SetActiveLayers(count int) {
	p.activeLayers.Set(float64(count))
}

func (p *PrometheusMetrics) ObserveAuditFlush(entries int, err error) {
	if err != nil {
		p.auditFlushes.WithLabelValues("error").Inc()
		return
	}
	p.auditFlushes.WithLabelValues("success").Inc()
	p.auditFlushed.Add(float64(entries))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
