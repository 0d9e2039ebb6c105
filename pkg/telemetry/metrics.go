package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus primitives for tenant-isolation health.
// The reset failure counter is the one to alert on: it must stay zero.
type Metrics struct {
	orgContextSwitches *prometheus.CounterVec
	orgContextDuration prometheus.Histogram
	orgResetFailures   prometheus.Counter
	recordsCreated     *prometheus.CounterVec
	authzDenials       *prometheus.CounterVec
	loginAttempts      *prometheus.CounterVec
	pdfRenders         *prometheus.CounterVec
}

// NewMetrics registers and returns the tenant-isolation metric set.
func NewMetrics() *Metrics {
	orgContextSwitches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opencrm_org_context_switches_total",
		Help: "Counts per-request org context set/reset cycles by outcome.",
	}, []string{"outcome"})

	orgContextDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "opencrm_org_context_scope_duration_seconds",
		Help:    "Time spent inside an org-scoped connection.",
		Buckets: prometheus.DefBuckets,
	})

	orgResetFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opencrm_org_context_reset_failures_total",
		Help: "Failed org context resets. Any non-zero value is a security incident.",
	})

	recordsCreated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opencrm_records_created_total",
		Help: "Records created by entity.",
	}, []string{"entity"})

	authzDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opencrm_authz_denials_total",
		Help: "Authorization denials by object and action.",
	}, []string{"object", "action"})

	loginAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opencrm_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	pdfRenders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opencrm_invoice_pdf_renders_total",
		Help: "Invoice PDF renders by outcome.",
	}, []string{"outcome"})

	prometheus.MustRegister(
		orgContextSwitches,
		orgContextDuration,
		orgResetFailures,
		recordsCreated,
		authzDenials,
		loginAttempts,
		pdfRenders,
	)

	return &Metrics{
		orgContextSwitches: orgContextSwitches,
		orgContextDuration: orgContextDuration,
		orgResetFailures:   orgResetFailures,
		recordsCreated:     recordsCreated,
		authzDenials:       authzDenials,
		loginAttempts:      loginAttempts,
		pdfRenders:         pdfRenders,
	}
}

// ObserveOrgScope records one org-scoped request by outcome and duration.
func (m *Metrics) ObserveOrgScope(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.orgContextSwitches.WithLabelValues(sanitizeLabel(outcome)).Inc()
	m.orgContextDuration.Observe(duration.Seconds())
}

// RecordResetFailure counts a failed org context reset.
func (m *Metrics) RecordResetFailure() {
	if m == nil {
		return
	}
	m.orgResetFailures.Inc()
}

// RecordCreated counts a created record by entity.
func (m *Metrics) RecordCreated(entity string) {
	if m == nil {
		return
	}
	m.recordsCreated.WithLabelValues(sanitizeLabel(entity)).Inc()
}

// RecordAuthzDenial counts a denied authorization decision.
func (m *Metrics) RecordAuthzDenial(object, action string) {
	if m == nil {
		return
	}
	m.authzDenials.WithLabelValues(sanitizeLabel(object), sanitizeLabel(action)).Inc()
}

// RecordLoginAttempt counts a login attempt by outcome.
func (m *Metrics) RecordLoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

// RecordPDFRender counts an invoice PDF render by outcome.
func (m *Metrics) RecordPDFRender(outcome string) {
	if m == nil {
		return
	}
	m.pdfRenders.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

func sanitizeLabel(val string) string {
	if val == "" {
		return "unknown"
	}
	return val
}
