package observability

import (
	"time"

	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Expiry paths for IncrExpired.
const (
	ExpiryLazy  = "lazy"
	ExpirySweep = "sweep"
)

// Metrics holds all Prometheus metrics for the advisor.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	outcomes          *prometheus.CounterVec
	warnings          prometheus.Counter
	persistenceErrors prometheus.Counter
	expired           *prometheus.CounterVec
	externalErrors    *prometheus.CounterVec
	rankingCache      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "advisor_operation_duration_seconds",
				Help:    "Duration of workflow operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_confirmation_outcomes_total",
				Help: "Confirmation actions by outcome.",
			},
			[]string{"outcome"},
		),
		warnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisor_warnings_total",
			Help: "Purchases held back because a better card existed.",
		}),
		persistenceErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "advisor_persistence_errors_total",
			Help: "Failed row appends (entry kept for retry).",
		}),
		expired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_pending_expired_total",
				Help: "Pending confirmations dropped after their TTL.",
			},
			[]string{"path"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		rankingCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "advisor_ranking_cache_total",
				Help: "Ranking cache lookups by result.",
			},
			[]string{"result"},
		),
	}
}

// RegisterPendingGauge exposes the live pending entry count.
// Call it once per registry.
func (m *Metrics) RegisterPendingGauge(count func() int) {
	promauto.With(m.Registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "advisor_pending_entries",
			Help: "Pending confirmations currently held in memory.",
		},
		func() float64 { return float64(count()) },
	)
}

// RecordOperationDuration records the duration of an operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrOutcome counts a committed/warned/cancelled action.
func (m *Metrics) IncrOutcome(outcome string) {
	m.outcomes.WithLabelValues(outcome).Inc()
	if outcome == domain.OutcomeWarned {
		m.warnings.Inc()
	}
}

// IncrPersistenceError counts a failed append.
func (m *Metrics) IncrPersistenceError() {
	m.persistenceErrors.Inc()
}

// IncrExpired counts entries dropped after their TTL.
func (m *Metrics) IncrExpired(path string, n int) {
	if n <= 0 {
		return
	}
	m.expired.WithLabelValues(path).Add(float64(n))
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the ranking cache hit counter.
func (m *Metrics) IncrCacheHit() {
	m.rankingCache.WithLabelValues("hit").Inc()
}

// IncrCacheMiss increments the ranking cache miss counter.
func (m *Metrics) IncrCacheMiss() {
	m.rankingCache.WithLabelValues("miss").Inc()
}

// GetAdvisorSnapshot returns the counters served by GET /v1/metrics/advisor.
func (m *Metrics) GetAdvisorSnapshot(pendingEntries int) *domain.AdvisorMetrics {
	committed := getCounterValue(m.outcomes, domain.OutcomeCommitted)
	warned := getCounterValue(m.outcomes, domain.OutcomeWarned)
	cancelled := getCounterValue(m.outcomes, domain.OutcomeCancelled)
	expired := getCounterValue(m.expired, ExpiryLazy) + getCounterValue(m.expired, ExpirySweep)

	warningRate := float64(0)
	// Every warned purchase is eventually committed, cancelled or expired,
	// so committed+cancelled approximates the number of purchases decided.
	if decided := committed + cancelled; decided > 0 {
		warningRate = warned / decided
	}

	return &domain.AdvisorMetrics{
		Committed:         int64(committed),
		Warned:            int64(warned),
		Cancelled:         int64(cancelled),
		Expired:           int64(expired),
		PersistenceErrors: int64(readCounter(m.persistenceErrors)),
		PendingEntries:    int64(pendingEntries),
		WarningRate:       warningRate,
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
