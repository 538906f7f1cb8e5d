package oireport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK      = "ok"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
)

// Metrics — счётчики движка. Нулевой *Metrics допустим и ничего не пишет.
type Metrics struct {
	reg         *prometheus.Registry
	Generations *prometheus.CounterVec
	RowsWritten prometheus.Counter
	StyleFaults prometheus.Counter
	Duration    prometheus.Histogram
}

// NewMetrics регистрирует метрики в собственном реестре.
func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	gens := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "oireport_generations_total",
		Help: "Сформированные отчёты по исходу",
	}, []string{"outcome"})
	rows := prometheus.NewCounter(prometheus.CounterOpts{Name: "oireport_rows_written_total"})
	faults := prometheus.NewCounter(prometheus.CounterOpts{Name: "oireport_style_faults_total"})
	dur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "oireport_generation_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})
	r.MustRegister(gens, rows, faults, dur)
	return &Metrics{reg: r, Generations: gens, RowsWritten: rows, StyleFaults: faults, Duration: dur}
}

// WriteTextfile сохраняет метрики для textfile-коллектора node_exporter.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}

func (m *Metrics) observe(outcome string, started time.Time, doc *Document) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	m.Duration.Observe(time.Since(started).Seconds())
	if doc != nil {
		m.RowsWritten.Add(float64(doc.Rows))
		m.StyleFaults.Add(float64(len(doc.StyleFaults)))
	}
}
