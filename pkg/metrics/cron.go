package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cycle outcomes recorded by CronJobMetrics.ObserveCycle.
const (
	CycleCompleted = "completed"
	CycleSkipped   = "skipped"
	CycleLockLost  = "lock_lost"
	CycleFailed    = "failed"
)

// CronJobMetrics covers the cron worker: one histogram and counter per job
// plus a per-cycle outcome counter. lastSuccess lets alerts fire when unpaid
// order expiry silently stops.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	cycles      *prometheus.CounterVec
}

// NewCronJobMetrics registers on reg. A nil registerer yields a no-op recorder.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storefront_cron_job_duration_seconds",
			Help:    "Duration of cron job runs.",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cron_job_runs_total",
			Help: "Cron job runs by result.",
		}, []string{"job", "result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "storefront_cron_job_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per job.",
		}, []string{"job"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cron_cycles_total",
			Help: "Cron cycles by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.duration, m.runs, m.lastSuccess, m.cycles)
	return m
}

// Observe records one job run that began at started.
func (c *CronJobMetrics) Observe(job string, started time.Time, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(time.Since(started).Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, "failure").Inc()
		return
	}
	c.runs.WithLabelValues(job, "success").Inc()
	c.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

// ObserveCycle counts one scheduler tick by outcome.
func (c *CronJobMetrics) ObserveCycle(outcome string) {
	if c == nil || c.cycles == nil {
		return
	}
	c.cycles.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
