// Package metrics собирает Prometheus-метрики движка границ.
// Все методы безопасны для nil-получателя: компоненты, созданные без метрик
// (тесты, утилиты), просто ничего не записывают.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BorderMetrics метрики правок, последовательностей и контроля движения.
//
// Метрики:
// * border_edits_total{op,result} — counter
// * border_blocks_changed_total{op} — counter
// * border_sequence_duration_seconds{kind,result} — histogram
// * border_active_lanes — gauge
// * border_queued_sequences — gauge
// * border_corrections_total{plane} — counter
type BorderMetrics struct {
	edits        *prometheus.CounterVec
	blocks       *prometheus.CounterVec
	sequenceTime *prometheus.HistogramVec
	lanes        prometheus.Gauge
	queued       prometheus.Gauge
	corrections  *prometheus.CounterVec
}

// New создаёт метрики и регистрирует их в reg.
// reg=nil означает prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) (*BorderMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &BorderMetrics{
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "border",
			Name:      "edits_total",
			Help:      "Количество массовых правок по типу и результату.",
		}, []string{"op", "result"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "border",
			Name:      "blocks_changed_total",
			Help:      "Количество изменённых блоков.",
		}, []string{"op"}),
		sequenceTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "border",
			Name:      "sequence_duration_seconds",
			Help:      "Длительность последовательностей очистка→заполнение.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind", "result"}),
		lanes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "border",
			Name:      "active_lanes",
			Help:      "Регионы с активной очередью правок.",
		}),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "border",
			Name:      "queued_sequences",
			Help:      "Последовательности, ожидающие выполнения.",
		}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "border",
			Name:      "corrections_total",
			Help:      "Возвраты актёров за границу по плоскости.",
		}, []string{"plane"}),
	}

	for _, c := range []prometheus.Collector{m.edits, m.blocks, m.sequenceTime, m.lanes, m.queued, m.corrections} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveEdit учитывает завершённую правку
func (m *BorderMetrics) ObserveEdit(op string, changed int, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.edits.WithLabelValues(op, result).Inc()
	if changed > 0 {
		m.blocks.WithLabelValues(op).Add(float64(changed))
	}
}

// ObserveSequence учитывает завершённую последовательность правок региона
func (m *BorderMetrics) ObserveSequence(kind string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sequenceTime.WithLabelValues(kind, result).Observe(d.Seconds())
}

// LaneOpened регион получил очередь правок
func (m *BorderMetrics) LaneOpened() {
	if m != nil {
		m.lanes.Inc()
	}
}

// LaneClosed очередь региона освобождена
func (m *BorderMetrics) LaneClosed() {
	if m != nil {
		m.lanes.Dec()
	}
}

// Queued изменяет число ожидающих последовательностей на delta
func (m *BorderMetrics) Queued(delta int) {
	if m != nil {
		m.queued.Add(float64(delta))
	}
}

// Correction учитывает возврат актёра
func (m *BorderMetrics) Correction(plane string) {
	if m != nil {
		m.corrections.WithLabelValues(plane).Inc()
	}
}
