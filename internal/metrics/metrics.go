package metrics

import (
	"coin_portal/internal/domain" // Sentinel errors
	"errors"                      // Error classification

	"github.com/prometheus/client_golang/prometheus" // Prometheus client
)

const (
	ResultOK                  = "ok"
	ResultInsufficientBalance = "insufficient_balance"
	ResultNotFound            = "not_found"
	ResultAlreadyClaimed      = "already_claimed"
	ResultRejected            = "rejected"
	ResultUnauthorized        = "unauthorized"
	ResultError               = "error"
)

// LedgerMetrics counts ledger outcomes
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	claims     *prometheus.CounterVec
	broadcasts prometheus.Counter
}

// NewLedgerMetrics creates the counters and registers them on reg when reg is not nil
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	m := &LedgerMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coin_portal",
			Name:      "ledger_operations_total",
			Help:      "Ledger operations by operation and result.",
		}, []string{"op", "result"}),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coin_portal",
			Name:      "claims_total",
			Help:      "Reward claim attempts by result.",
		}, []string{"result"}),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coin_portal",
			Name:      "broadcast_notifications_total",
			Help:      "Notifications written by broadcasts.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.claims, m.broadcasts)
	}
	return m
}

// Classify maps an operation error to a result label
func Classify(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, domain.ErrInsufficientBalance):
		return ResultInsufficientBalance
	case errors.Is(err, domain.ErrAlreadyClaimed):
		return ResultAlreadyClaimed
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrRecipientNotFound):
		return ResultNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return ResultUnauthorized
	case errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidType),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrNotARewardNotification),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrInvalidReferral),
		errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrInvalidNotification):
		return ResultRejected
	}
	return ResultError
}

// ObserveOperation records the outcome of op
func (m *LedgerMetrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, Classify(err)).Inc()
}

// ObserveClaim records the outcome of a claim attempt
func (m *LedgerMetrics) ObserveClaim(err error) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(Classify(err)).Inc()
}

// ObserveBroadcast records n fanned-out notifications
func (m *LedgerMetrics) ObserveBroadcast(n int) {
	if m == nil {
		return
	}
	m.broadcasts.Add(float64(n))
}
