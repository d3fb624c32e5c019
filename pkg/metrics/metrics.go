package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 服务运行指标
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	Transitions     *prometheus.CounterVec
	ProgressUpdates prometheus.Counter
	Evaluations     prometheus.Counter
}

// New 创建独立 registry 并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "http_requests_total",
			Help:      "HTTP 请求总数",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP 请求耗时",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "project_transitions_total",
			Help:      "项目状态迁移次数",
		}, []string{"from", "to"}),
		ProgressUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "progress_updates_total",
			Help:      "已记录的周进度数",
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "evaluations_total",
			Help:      "已记录的评分数",
		}),
	}
	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.Transitions,
		m.ProgressUpdates,
		m.Evaluations,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler 暴露 /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回内部 registry（测试用）
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveTransition 记录一次状态迁移，nil 安全
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(from, to).Inc()
}

// ObserveProgress 记录一次周进度写入，nil 安全
func (m *Metrics) ObserveProgress() {
	if m == nil {
		return
	}
	m.ProgressUpdates.Inc()
}

// ObserveEvaluation 记录一次评分写入，nil 安全
func (m *Metrics) ObserveEvaluation() {
	if m == nil {
		return
	}
	m.Evaluations.Inc()
}
