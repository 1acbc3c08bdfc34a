package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chefos"

// 模型呼叫結果標籤
const (
	OutcomeSuccess    = "success"
	OutcomeError      = "error"
	OutcomeUnparsable = "unparsable"
	OutcomeCacheHit   = "cache_hit"
)

// Metrics Prometheus 指標集合
type Metrics struct {
	modelCalls       *prometheus.CounterVec
	modelDuration    *prometheus.HistogramVec
	pipelineOutcomes *prometheus.CounterVec
	activeSessions   prometheus.Gauge
}

// New 在指定的 Registerer 上建立指標；nil 代表不註冊（測試用）
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		modelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "model_calls_total",
				Help:      "Total number of language model calls by pipeline stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		modelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_call_duration_seconds",
				Help:      "Duration of language model calls",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"stage"},
		),
		pipelineOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_outcomes_total",
				Help:      "Results of user actions (analyze, generate, toggle, reset)",
			},
			[]string{"action", "result"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of live cooking sessions",
			},
		),
	}
}

// ObserveModelCall 記錄一次模型呼叫
func (m *Metrics) ObserveModelCall(stage, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(stage, outcome).Inc()
	if outcome != OutcomeCacheHit {
		m.modelDuration.WithLabelValues(stage).Observe(duration.Seconds())
	}
}

// ObservePipeline 記錄一次使用者動作的結果
func (m *Metrics) ObservePipeline(action, result string) {
	if m == nil {
		return
	}
	m.pipelineOutcomes.WithLabelValues(action, result).Inc()
}

// SetActiveSessions 更新存活會話數
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
