// Package observability holds the Prometheus collectors shared by the API and
// the job host.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"summercamp_backend/internal/events"
)

const namespace = "summercamp"

var (
	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Deferred job executions by job type and result.",
	}, []string{"job_type", "result"})
	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Wall time of deferred job executions.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job_type"})
	statusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "camps",
		Name:      "status_transitions_total",
		Help:      "Applied camp status transitions.",
	}, []string{"from", "to"})
	provisioningSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provisioning",
		Name:      "steps_total",
		Help:      "Provisioning workflow steps by outcome (done, skipped, failed).",
	}, []string{"step", "outcome"})
	photoCopies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provisioning",
		Name:      "photo_copies_total",
		Help:      "Camper avatar copies by result.",
	}, []string{"result"})
	attendanceWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attendance",
		Name:      "record_writes_total",
		Help:      "Attendance records written from recognition results.",
	}, []string{"action"})
	idempotentReplays = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "attendance",
		Name:      "idempotent_replays_total",
		Help:      "Recognition webhooks answered from the idempotency cache.",
	})
)

func init() {
	prometheus.MustRegister(
		jobRuns,
		jobDuration,
		statusTransitions,
		provisioningSteps,
		photoCopies,
		attendanceWrites,
		idempotentReplays,
	)
}

// RecordJobRun counts one job execution.
func RecordJobRun(jobType, result string, seconds float64) {
	jobRuns.WithLabelValues(jobType, result).Inc()
	jobDuration.WithLabelValues(jobType).Observe(seconds)
}

// RecordTransition counts an applied status change.
func RecordTransition(from, to string) {
	statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordProvisioningStep counts a workflow step outcome.
func RecordProvisioningStep(step, outcome string) {
	provisioningSteps.WithLabelValues(step, outcome).Inc()
}

// RecordPhotoCopies adds copied and failed avatar counts.
func RecordPhotoCopies(copied, failed int) {
	if copied > 0 {
		photoCopies.WithLabelValues("copied").Add(float64(copied))
	}
	if failed > 0 {
		photoCopies.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordAttendanceWrites adds updated and created record counts.
func RecordAttendanceWrites(updated, created int) {
	if updated > 0 {
		attendanceWrites.WithLabelValues("updated").Add(float64(updated))
	}
	if created > 0 {
		attendanceWrites.WithLabelValues("created").Add(float64(created))
	}
}

// RecordIdempotentReplay counts a webhook answered from cache.
func RecordIdempotentReplay() {
	idempotentReplays.Inc()
}

// RegisterHandlers subscribes the metrics recorders to domain events.
func RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.CampStatusChanged{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.CampStatusChanged); ok {
			RecordTransition(e.From, e.To)
		}
		return nil
	}))
	bus.Subscribe(events.AttendanceProvisioned{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.AttendanceProvisioned); ok {
			RecordPhotoCopies(e.PhotosCopied, e.PhotosFailed)
		}
		return nil
	}))
	bus.Subscribe(events.AttendanceReconciled{}.EventName(), events.HandlerFunc(func(_ context.Context, event events.Event) error {
		if e, ok := event.(events.AttendanceReconciled); ok {
			RecordAttendanceWrites(e.Updated, e.Created)
		}
		return nil
	}))
}
