// Package metrics collects Prometheus metrics from library events and snapshot saves.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"lending-library/async"
	"lending-library/library"
)

// Collector is the Prometheus implementation. Attach it to a Library to feed it events.
type Collector struct {
	events      *prometheus.CounterVec
	books       prometheus.Gauge
	users       prometheus.Gauge
	activeLoans prometheus.Gauge
	saveLatency prometheus.Histogram
	saveFailed  *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_events_total",
			Help: "Domain events fired, by event name.",
		}, []string{"event"}),
		books: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "library_books",
			Help: "Titles in the catalogue.",
		}),
		users: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "library_users",
			Help: "Registered members.",
		}),
		activeLoans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "library_active_loans",
			Help: "Loans currently outstanding.",
		}),
		saveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "library_save_latency_seconds",
			Help:    "Time taken by snapshot saves.",
			Buckets: prometheus.DefBuckets,
		}),
		saveFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "library_save_failures_total",
			Help: "Snapshot saves that failed, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.events,
		c.books,
		c.users,
		c.activeLoans,
		c.saveLatency,
		c.saveFailed,
	)

	return c
}

// Attach subscribes the Collector to every event of lib and seeds the gauges from its
// current state.
func (c *Collector) Attach(lib *library.Library) library.Subscription {
	stats := lib.Statistics()
	c.books.Set(float64(stats.TotalBooks))
	c.users.Set(float64(stats.TotalUsers))
	c.activeLoans.Set(float64(stats.ActiveLoans))
	return lib.OnAny(c.Observe)
}

// Observe records one event.
func (c *Collector) Observe(ev library.Event) {
	c.events.WithLabelValues(string(ev.Name)).Inc()
	switch ev.Name {
	case library.EventBookAdded:
		c.books.Inc()
	case library.EventBookRemoved:
		c.books.Dec()
	case library.EventUserRegistered:
		c.users.Inc()
	case library.EventUserRemoved:
		c.users.Dec()
	case library.EventLoanCreated:
		c.activeLoans.Inc()
	case library.EventLoanReturned:
		c.activeLoans.Dec()
	case library.EventLibraryRestored:
		if r, ok := ev.Data.(library.RestoredEvent); ok {
			c.books.Set(float64(r.Books))
			c.users.Set(float64(r.Users))
			c.activeLoans.Set(float64(r.Loans))
		}
	}
}

// RecordSave records a finished save attempt.
func (c *Collector) RecordSave(d time.Duration, err error) {
	c.saveLatency.Observe(d.Seconds())
	if err == nil {
		return
	}
	var timeout *async.DeadlineExceeded
	if errors.As(err, &timeout) {
		c.saveFailed.WithLabelValues("timeout").Inc()
		return
	}
	c.saveFailed.WithLabelValues("error").Inc()
}

// WriteText writes every metric gathered from g in the Prometheus text format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
