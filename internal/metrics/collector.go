// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器。所有 Record 方法对 nil 接收者安全，
// 组件可以在未配置指标时直接传入 nil。
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 编译指标
	compilationsTotal *prometheus.CounterVec
	compileDuration   prometheus.Histogram
	compileSteps      prometheus.Histogram
	diagnosticsTotal  *prometheus.CounterVec

	// 历史指标
	historyOperations *prometheus.CounterVec
	historyDepth      *prometheus.GaugeVec

	// 轮询指标
	pollsTotal       *prometheus.CounterVec
	pollDuration     prometheus.Histogram
	executionsTotal  *prometheus.CounterVec
	executionsActive prometheus.Gauge

	// 执行引擎客户端指标
	engineRequestsTotal   *prometheus.CounterVec
	engineRequestDuration *prometheus.HistogramVec
	breakerState          prometheus.Gauge

	// 草稿存储指标
	draftOperations *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器，指标注册到默认 Registry
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 编译指标
	c.compilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compilations_total",
			Help:      "Total number of graph compilations",
		},
		[]string{"result"}, // result: clean, warnings, errors
	)

	c.compileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_duration_seconds",
			Help:      "Graph compilation duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		},
	)

	c.compileSteps = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compile_steps",
			Help:      "Number of steps per compiled workflow",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)

	c.diagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compile_diagnostics_total",
			Help:      "Total number of compile diagnostics by code",
		},
		[]string{"code", "severity"},
	)

	// 历史指标
	c.historyOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_operations_total",
			Help:      "Total number of history operations",
		},
		[]string{"operation"},
	)

	c.historyDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "history_depth",
			Help:      "Current size of the undo and redo stacks",
		},
		[]string{"stack"}, // stack: past, future
	)

	// 轮询指标
	c.pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_polls_total",
			Help:      "Total number of execution status fetches",
		},
		[]string{"result"}, // result: ok, error
	)

	c.pollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_poll_duration_seconds",
			Help:      "Execution status fetch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	c.executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_settled_total",
			Help:      "Total number of executions observed reaching a terminal status",
		},
		[]string{"status"},
	)

	c.executionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "executions_polling",
			Help:      "Number of executions currently being polled",
		},
	)

	// 执行引擎客户端指标
	c.engineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_requests_total",
			Help:      "Total number of workflow engine API requests",
		},
		[]string{"operation", "status"},
	)

	c.engineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_request_duration_seconds",
			Help:      "Workflow engine API request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation"},
	)

	c.breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_circuit_state",
			Help:      "Engine circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
	)

	// 草稿存储指标
	c.draftOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_operations_total",
			Help:      "Total number of draft store operations",
		},
		[]string{"operation", "result"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, responseSize int64) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧩 编译指标记录
// =============================================================================

// RecordCompile 记录一次编译；diagnostics 以 code → severity 列表传入
func (c *Collector) RecordCompile(steps int, duration time.Duration, diagnostics map[string]string, hasErrors bool) {
	if c == nil {
		return
	}
	result := "clean"
	switch {
	case hasErrors:
		result = "errors"
	case len(diagnostics) > 0:
		result = "warnings"
	}
	c.compilationsTotal.WithLabelValues(result).Inc()
	c.compileDuration.Observe(duration.Seconds())
	c.compileSteps.Observe(float64(steps))
	for code, severity := range diagnostics {
		c.diagnosticsTotal.WithLabelValues(code, severity).Inc()
	}
}

// =============================================================================
// ↩️ 历史指标记录
// =============================================================================

// RecordHistoryOperation 记录历史操作并更新栈深度
func (c *Collector) RecordHistoryOperation(operation string, past, future int) {
	if c == nil {
		return
	}
	c.historyOperations.WithLabelValues(operation).Inc()
	c.historyDepth.WithLabelValues("past").Set(float64(past))
	c.historyDepth.WithLabelValues("future").Set(float64(future))
}

// =============================================================================
// ⏱️ 轮询指标记录
// =============================================================================

// RecordPoll 记录一次状态拉取
func (c *Collector) RecordPoll(duration time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.pollsTotal.WithLabelValues(result).Inc()
	c.pollDuration.Observe(duration.Seconds())
}

// RecordPollingStarted 记录开始轮询某个执行
func (c *Collector) RecordPollingStarted() {
	if c == nil {
		return
	}
	c.executionsActive.Inc()
}

// RecordPollingStopped 记录停止轮询某个执行；status 为空表示未到终态即停止
func (c *Collector) RecordPollingStopped(status string) {
	if c == nil {
		return
	}
	c.executionsActive.Dec()
	if status != "" {
		c.executionsTotal.WithLabelValues(status).Inc()
	}
}

// =============================================================================
// 🔌 执行引擎指标记录
// =============================================================================

// RecordEngineRequest 记录执行引擎请求
func (c *Collector) RecordEngineRequest(operation string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.engineRequestsTotal.WithLabelValues(operation, statusCode(status)).Inc()
	c.engineRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBreakerState 记录熔断器状态
func (c *Collector) RecordBreakerState(state int) {
	if c == nil {
		return
	}
	c.breakerState.Set(float64(state))
}

// =============================================================================
// 💾 草稿指标记录
// =============================================================================

// RecordDraftOperation 记录草稿存储操作
func (c *Collector) RecordDraftOperation(operation string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.draftOperations.WithLabelValues(operation, result).Inc()
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串，0 表示请求未发出
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
