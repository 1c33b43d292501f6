package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records request latency and relationship-maintenance outcomes.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpDuration      *prometheus.HistogramVec
	synergies         *prometheus.CounterVec
	primaryReassigned prometheus.Counter
	conflicts         *prometheus.CounterVec
	outbox            *prometheus.CounterVec
}

// New registers the CRM metrics on the provided registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crm_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	synergies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_synergy_derivations_total",
		Help: "Synergies created or archived by deal association changes.",
	}, []string{"action"})
	primaryReassigned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "crm_primary_reassignments_total",
		Help: "Times a contact's primary area of activity moved to another row.",
	})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_conflicts_total",
		Help: "Operations rejected because a concurrent writer won.",
	}, []string{"operation"})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crm_outbox_events_total",
		Help: "Outbox rows processed by the publisher, by result.",
	}, []string{"result"})
	reg.MustRegister(httpDuration, synergies, primaryReassigned, conflicts, outbox)
	return &Metrics{
		httpDuration:      httpDuration,
		synergies:         synergies,
		primaryReassigned: primaryReassigned,
		conflicts:         conflicts,
		outbox:            outbox,
	}
}

// ObserveHTTP records one served request. route is the chi route pattern.
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

func (m *Metrics) SynergyCreated() {
	if m == nil || m.synergies == nil {
		return
	}
	m.synergies.WithLabelValues("created").Inc()
}

func (m *Metrics) SynergyArchived() {
	if m == nil || m.synergies == nil {
		return
	}
	m.synergies.WithLabelValues("archived").Inc()
}

func (m *Metrics) PrimaryReassigned() {
	if m == nil || m.primaryReassigned == nil {
		return
	}
	m.primaryReassigned.Inc()
}

// Conflict counts a CONFLICT outcome for the named operation.
func (m *Metrics) Conflict(operation string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

// OutboxResult counts publisher outcomes: published, retried or terminal.
func (m *Metrics) OutboxResult(result string, n int) {
	if m == nil || m.outbox == nil || n <= 0 {
		return
	}
	m.outbox.WithLabelValues(normalizeLabel(result)).Add(float64(n))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
