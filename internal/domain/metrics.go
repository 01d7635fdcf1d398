package domain

import "time"

// RequestStatus labels the outcome of a registry request.
type RequestStatus string

const (
	// RequestStatusSuccess indicates the request completed.
	RequestStatusSuccess RequestStatus = "success"
	// RequestStatusFailure indicates a structured failure was returned.
	RequestStatusFailure RequestStatus = "failure"
)

// RequestMetric captures metrics for one discover/activate/deactivate/search call.
type RequestMetric struct {
	Operation string
	Status    RequestStatus
	Duration  time.Duration
}

// Metrics records registry metrics.
type Metrics interface {
	ObserveRequest(metric RequestMetric)
	ObserveBudget(state BudgetState)
	ObserveActivations(kind AuditKind, count int)
	ObserveEvictions(strategy StrategyKind, count int)
	ObserveBudgetOverflow()
	SetActiveLayers(count int)
	ObserveAuditFlush(entries int, err error)
}
