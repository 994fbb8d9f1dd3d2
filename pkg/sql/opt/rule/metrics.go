// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the prometheus metrics of the planners. A nil *Metrics is
// valid and records nothing. Metrics can be shared by concurrent runs.
type Metrics struct {
	Attempts         *prometheus.CounterVec
	Transforms       *prometheus.CounterVec
	Registered       prometheus.Counter
	Merges           prometheus.Counter
	PlanningDuration *prometheus.HistogramVec
}

// NewMetrics returns unregistered metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relopt",
			Subsystem: "rule",
			Name:      "attempts_total",
			Help:      "Number of times a rule was fired on a binding.",
		}, []string{"rule"}),
		Transforms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relopt",
			Subsystem: "rule",
			Name:      "transforms_total",
			Help:      "Number of expressions produced by a rule.",
		}, []string{"rule"}),
		Registered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relopt",
			Subsystem: "memo",
			Name:      "registered_total",
			Help:      "Number of expressions registered in equivalence sets.",
		}),
		Merges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relopt",
			Subsystem: "memo",
			Name:      "merges_total",
			Help:      "Number of equivalence set merges.",
		}),
		PlanningDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relopt",
			Name:      "planning_duration_seconds",
			Help:      "Duration of planning runs.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"planner"}),
	}
}

// Register registers every metric with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.Attempts, m.Transforms, m.Registered, m.Merges, m.PlanningDuration,
	} {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "registering planner metrics")
		}
	}
	return nil
}

// RecordAttempt counts one firing of the named rule.
func (m *Metrics) RecordAttempt(rule string) {
	if m != nil {
		m.Attempts.WithLabelValues(rule).Inc()
	}
}

// RecordTransforms counts n results of the named rule.
func (m *Metrics) RecordTransforms(rule string, n int) {
	if m != nil && n > 0 {
		m.Transforms.WithLabelValues(rule).Add(float64(n))
	}
}

// RecordRegistered counts a newly registered expression.
func (m *Metrics) RecordRegistered() {
	if m != nil {
		m.Registered.Inc()
	}
}

// RecordMerge counts a set merge.
func (m *Metrics) RecordMerge() {
	if m != nil {
		m.Merges.Inc()
	}
}

// RecordDuration records the duration of a run of the named planner.
func (m *Metrics) RecordDuration(planner string, d time.Duration) {
	if m != nil {
		m.PlanningDuration.WithLabelValues(planner).Observe(d.Seconds())
	}
}

// Stats counts rule firings during one run. Unlike Metrics it is owned by
// the run, and its output is deterministic so it can be compared in tests.
type Stats struct {
	entries map[string]*statsEntry
}

type statsEntry struct {
	attempts   int
	transforms int
}

func (s *Stats) entry(rule string) *statsEntry {
	if s.entries == nil {
		s.entries = make(map[string]*statsEntry)
	}
	e, ok := s.entries[rule]
	if !ok {
		e = &statsEntry{}
		s.entries[rule] = e
	}
	return e
}

// RecordAttempt counts one firing of the named rule.
func (s *Stats) RecordAttempt(rule string) { s.entry(rule).attempts++ }

// RecordTransforms counts n results of the named rule.
func (s *Stats) RecordTransforms(rule string, n int) { s.entry(rule).transforms += n }

// Attempts returns the number of firings of the named rule.
func (s *Stats) Attempts(rule string) int {
	if e, ok := s.entries[rule]; ok {
		return e.attempts
	}
	return 0
}

// Transforms returns the number of results of the named rule.
func (s *Stats) Transforms(rule string) int {
	if e, ok := s.entries[rule]; ok {
		return e.transforms
	}
	return 0
}

// TotalAttempts returns the number of firings of all rules.
func (s *Stats) TotalAttempts() int {
	n := 0
	for _, e := range s.entries {
		n += e.attempts
	}
	return n
}

// Format writes a table of the rules that fired, the most attempted first.
func (s *Stats) Format(w io.Writer) {
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := s.entries[names[i]], s.entries[names[j]]
		if a.attempts != b.attempts {
			return a.attempts > b.attempts
		}
		return names[i] < names[j]
	})

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Rule", "Attempts", "Transforms"})
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
	})
	totalAttempts, totalTransforms := 0, 0
	for _, n := range names {
		e := s.entries[n]
		table.Append([]string{n, fmt.Sprint(e.attempts), fmt.Sprint(e.transforms)})
		totalAttempts += e.attempts
		totalTransforms += e.transforms
	}
	table.SetFooter([]string{"Total", fmt.Sprint(totalAttempts), fmt.Sprint(totalTransforms)})
	table.Render()
}

// String returns the table written by Format.
func (s *Stats) String() string {
	var b strings.Builder
	s.Format(&b)
	return b.String()
}
