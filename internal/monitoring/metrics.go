package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 提交结果标签
const (
	OutcomeSuccess       = "success"
	OutcomeRateLimited   = "rate_limited"
	OutcomeMisconfigured = "misconfigured"
	OutcomeInvalidJSON   = "invalid_json"
	OutcomeMissingFields = "missing_fields"
	OutcomeProviderError = "provider_error"
	OutcomeError         = "error"
)

// Metrics 监控指标
//
// 每个实例持有独立的注册表，/metrics 只暴露本实例注册的指标。
type Metrics struct {
	registry  *prometheus.Registry
	startedAt time.Time

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 联系表单指标
	SubmissionsTotal *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	SpamFlagged      *prometheus.CounterVec

	// 限流指标
	RateLimitBlocks  *prometheus.CounterVec
	RateLimitEntries prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	SystemUptime prometheus.GaugeFunc
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startedAt: time.Now(),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "endpoint"},
		),

		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_contact_submissions_total",
				Help: "Contact form submissions by outcome",
			},
			[]string{"outcome"},
		),

		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_email_provider_duration_seconds",
				Help:    "Latency of outbound email provider calls",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"provider", "result"},
		),

		SpamFlagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_contact_spam_flagged_total",
				Help: "Submissions flagged by the content filter",
			},
			[]string{"rule"},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_rate_limit_blocks_total",
				Help: "Submissions rejected by the rate limiter",
			},
			[]string{"backend"},
		),

		RateLimitEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_rate_limit_entries",
				Help: "Clients tracked by the in-memory rate limiter",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "portfolio_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}

	m.SystemUptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "portfolio_uptime_seconds",
			Help: "Seconds since the process started serving",
		},
		func() float64 { return time.Since(m.startedAt).Seconds() },
	)

	return m
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordSubmission 记录一次提交的结果
func (m *Metrics) RecordSubmission(outcome string) {
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordProviderCall 记录出站调用耗时
func (m *Metrics) RecordProviderCall(provider string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProviderDuration.WithLabelValues(provider, result).Observe(duration.Seconds())
}

// RecordSpamFlag 记录垃圾内容命中
func (m *Metrics) RecordSpamFlag(rule string) {
	m.SpamFlagged.WithLabelValues(rule).Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(backend string) {
	m.RateLimitBlocks.WithLabelValues(backend).Inc()
}

// UpdateRateLimitEntries 更新内存限流表大小
func (m *Metrics) UpdateRateLimitEntries(count int) {
	m.RateLimitEntries.Set(float64(count))
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
