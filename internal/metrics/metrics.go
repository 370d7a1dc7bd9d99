// Package metrics exports struct-name table activity as Prometheus metrics.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"structnames/internal/structidx"
)

const namespace = "structnames"

// Table implements structidx.Observer on top of Prometheus collectors.
type Table struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	flushes prometheus.Counter
	entries prometheus.Gauge
	defects *prometheus.CounterVec
}

var _ structidx.Observer = (*Table)(nil)

// NewTable creates the collectors and registers them with reg.
func NewTable(reg prometheus.Registerer) (*Table, error) {
	m := &Table{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intern_hits_total",
			Help:      "Intern calls that found an existing handle.",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intern_misses_total",
			Help:      "Intern calls that assigned a new handle.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Table flushes (epoch boundaries).",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Identifiers interned in the current epoch.",
		}),
		defects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "defects_total",
			Help:      "Broken table invariants reported, by defect code.",
		}, []string{"code"}),
	}
	for _, c := range []prometheus.Collector{m.hits, m.misses, m.flushes, m.entries, m.defects} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register table metrics: %w", err)
		}
	}
	return m, nil
}

// InternHit implements structidx.Observer.
func (m *Table) InternHit() { m.hits.Inc() }

// InternMiss implements structidx.Observer.
func (m *Table) InternMiss(entries int) {
	m.misses.Inc()
	m.entries.Set(float64(entries))
}

// Flushed implements structidx.Observer.
func (m *Table) Flushed(int) {
	m.flushes.Inc()
	m.entries.Set(0)
}

// Defect implements structidx.Observer.
func (m *Table) Defect(code structidx.Code) {
	m.defects.WithLabelValues(code.String()).Inc()
}

// WriteText dumps everything gathered by g in the Prometheus text format.
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
