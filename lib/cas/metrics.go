package cas

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// Metrics counts update outcomes using VictoriaMetrics.
//
// All metrics are created up front in a private metrics.Set. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	set *metrics.Set

	updates   *metrics.Counter // committed updates
	attempts  *metrics.Counter // compare-and-set proposals
	conflicts *metrics.Counter // refused proposals
	failures  *metrics.Counter // updates ended by an error
	exhausted *metrics.Counter // updates ended by the attempt ceiling

	attemptsPerUpdate *metrics.Histogram
}

// NewMetrics creates a collector whose metric names start with prefix.
func NewMetrics(prefix string) *Metrics {
	set := metrics.NewSet()
	name := func(n string) string {
		return fmt.Sprintf("%s_cas_%s", prefix, n)
	}

	return &Metrics{
		set:               set,
		updates:           set.NewCounter(name("updates_total")),
		attempts:          set.NewCounter(name("attempts_total")),
		conflicts:         set.NewCounter(name("conflicts_total")),
		failures:          set.NewCounter(name("failures_total")),
		exhausted:         set.NewCounter(name("exhausted_total")),
		attemptsPerUpdate: set.NewHistogram(name("attempts_per_update")),
	}
}

// Set returns the underlying metrics set, e.g. to register it globally.
func (m *Metrics) Set() *metrics.Set {
	return m.set
}

// WritePrometheus writes all metrics in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// Updates returns the number of committed updates.
func (m *Metrics) Updates() uint64 { return m.updates.Get() }

// Conflicts returns the number of refused compare-and-set proposals.
func (m *Metrics) Conflicts() uint64 { return m.conflicts.Get() }

// Failures returns the number of updates that ended with an error.
func (m *Metrics) Failures() uint64 { return m.failures.Get() }

func (m *Metrics) conflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *Metrics) observe(attempts int, err error) {
	if m == nil {
		return
	}
	m.attempts.Add(attempts)
	if err != nil {
		m.failures.Inc()
		if isTooManyConflicts(err) {
			m.exhausted.Inc()
		}
		return
	}
	m.updates.Inc()
	m.attemptsPerUpdate.Update(float64(attempts))
}
