package telemetry

import "capgate/internal/domain"

type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics {
	return &NoopMetrics{}
}

func (n *NoopMetrics) ObserveRequest(_ domain.RequestMetric) {}

func (n *NoopMetrics) ObserveBudget(_ domain.BudgetState) {}

func (n *NoopMetrics) ObserveActivations(_ domain.AuditKind, _ int) {}

func (n *NoopMetrics) ObserveEvictions(_ domain.StrategyKind, _ int) {}

func (n *NoopMetrics) ObserveBudgetOverflow() {}

func (n *NoopMetrics) SetActiveLayers(_ int) {}

func (n *NoopMetrics) ObserveAuditFlush(_ int, _ error) {}

var _ domain.Metrics = (*NoopMetrics)(nil)
