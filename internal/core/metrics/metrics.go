package metrics

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-apmrouter/internal/core/aggregator"
	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
	"github.com/dep2p/go-apmrouter/pkg/lib/log"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

var logger = log.Logger("core/metrics")

// 协商结果标签值
const (
	resultCompleted = "completed"
	resultFailed    = "failed"
)

// CountsSource 以键值形式提供计数（路由器实现）
type CountsSource interface {
	Counts() map[string]int64
}

// Metrics apmrouter 监控指标
//
// 实现 negotiation.Observer 与 Reporter。
type Metrics struct {
	cfg      Config
	registry *prometheus.Registry
	traffic  *Traffic
	handler  http.Handler

	matched      *prometheus.CounterVec
	failed       *prometheus.CounterVec
	negotiations *prometheus.CounterVec
	negBytes     *prometheus.HistogramVec
	negDuration  *prometheus.HistogramVec

	connsActive  prometheus.Gauge
	connsTotal   prometheus.Counter
	connDuration prometheus.Histogram
}

var _ negotiation.Observer = (*Metrics)(nil)

// Option 指标选项
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock 设置流量速率使用的时钟
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New 创建指标集合
func New(cfg Config, opts ...Option) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultConfig().Namespace
	}

	m := &Metrics{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		traffic:  NewTraffic(o.clock),

		matched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "negotiation",
			Name:      "initiator_matched_total",
			Help:      "Initiators that won a detect phase and installed",
		}, []string{"initiator", "phase"}),

		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "negotiation",
			Name:      "initiator_failed_total",
			Help:      "Initiators ruled out for a connection by phase and reason",
		}, []string{"initiator", "phase", "reason"}),

		negotiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "negotiation",
			Name:      "total",
			Help:      "Negotiation outcomes by result and final phase",
		}, []string{"result", "phase"}),

		negBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "negotiation",
			Name:      "bytes",
			Help:      "Bytes inspected before the negotiation outcome",
			Buckets:   []float64{0, 4, 16, 64, 256, 1024, 4096, 16384},
		}, []string{"result"}),

		negDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "negotiation",
			Name:      "duration_seconds",
			Help:      "Time from first byte to negotiation outcome",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}, []string{"result"}),

		connsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Currently open connections",
		}),

		connsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "connections",
			Name:      "total",
			Help:      "Accepted connections",
		}),

		connDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Subsystem: "connections",
			Name:      "duration_seconds",
			Help:      "Connection lifetime",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	m.registry.MustRegister(
		m.matched, m.failed, m.negotiations, m.negBytes, m.negDuration,
		m.connsActive, m.connsTotal, m.connDuration,
		newTrafficCollector(ns, m.traffic),
		prometheus.NewGoCollector(),
	)
	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
	return m, nil
}

// Registry 返回 Prometheus 注册表
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 Prometheus 暴露 handler
func (m *Metrics) Handler() http.Handler { return m.handler }

// Traffic 返回流量统计
func (m *Metrics) Traffic() *Traffic { return m.traffic }

// ============================================================================
//                              negotiation.Observer
// ============================================================================

// InitiatorMatched 实现 negotiation.Observer
func (m *Metrics) InitiatorMatched(name string, phase types.Phase) {
	m.matched.WithLabelValues(name, phase.String()).Inc()
}

// InitiatorFailed 实现 negotiation.Observer
func (m *Metrics) InitiatorFailed(name string, phase types.Phase, installErr bool) {
	reason := "no_match"
	if installErr {
		reason = "install"
	}
	m.failed.WithLabelValues(name, phase.String(), reason).Inc()
}

// NegotiationCompleted 实现 negotiation.Observer
func (m *Metrics) NegotiationCompleted(bytes int, elapsed time.Duration) {
	m.negotiations.WithLabelValues(resultCompleted, types.PhaseComplete.String()).Inc()
	m.negBytes.WithLabelValues(resultCompleted).Observe(float64(bytes))
	m.negDuration.WithLabelValues(resultCompleted).Observe(elapsed.Seconds())
}

// NegotiationFailed 实现 negotiation.Observer
func (m *Metrics) NegotiationFailed(phase types.Phase, bytes int, elapsed time.Duration) {
	m.negotiations.WithLabelValues(resultFailed, phase.String()).Inc()
	m.negBytes.WithLabelValues(resultFailed).Observe(float64(bytes))
	m.negDuration.WithLabelValues(resultFailed).Observe(elapsed.Seconds())
}

// ============================================================================
//                              Reporter
// ============================================================================

// ConnOpened 实现 Reporter
func (m *Metrics) ConnOpened() {
	m.connsActive.Inc()
	m.connsTotal.Inc()
}

// ConnClosed 实现 Reporter
func (m *Metrics) ConnClosed(protocol string, in, out int64, elapsed time.Duration) {
	m.connsActive.Dec()
	m.connDuration.Observe(elapsed.Seconds())
	m.traffic.Log(protocol, in, out)
}

// ============================================================================
//                              外部计数
// ============================================================================

// RegisterAggregation 导出完整负载聚合计数
func (m *Metrics) RegisterAggregation(c *aggregator.Counters) error {
	if c == nil {
		return nil
	}
	ns := m.namespace()
	return registerAll(m.registry,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: "aggregation", Name: "in_flight",
			Help: "Payloads currently being aggregated",
		}, func() float64 { return float64(c.InFlight()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "aggregation", Name: "completed_total",
			Help: "Payloads delivered downstream",
		}, func() float64 { return float64(c.Completed()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "aggregation", Name: "discarded_total",
			Help: "Payloads discarded before delivery",
		}, func() float64 { return float64(c.Discarded()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "aggregation", Name: "delivered_bytes_total",
			Help: "Bytes delivered downstream",
		}, func() float64 { return float64(c.DeliveredBytes()) }),
	)
}

// routerCounters 路由器计数键与导出类型
var routerCounters = []struct {
	key   string
	help  string
	gauge bool
}{
	{"received", "Metric points routed", false},
	{"rejected", "Metric points rejected by validation", false},
	{"dropped", "Metric points dropped on full subscriber buffers", false},
	{"evicted", "Series evicted from the catalog", false},
	{"series", "Series currently held in the catalog", true},
	{"subscribers", "Active subscribers", true},
}

// RegisterRouter 导出路由器计数
func (m *Metrics) RegisterRouter(src CountsSource) error {
	if src == nil {
		return nil
	}
	ns := m.namespace()
	collectors := make([]prometheus.Collector, 0, len(routerCounters))
	for _, rc := range routerCounters {
		key := rc.key
		read := func() float64 { return float64(src.Counts()[key]) }
		if rc.gauge {
			collectors = append(collectors, prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: ns, Subsystem: "router", Name: key, Help: rc.help,
			}, read))
			continue
		}
		collectors = append(collectors, prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: ns, Subsystem: "router", Name: key + "_total", Help: rc.help,
		}, read))
	}
	return registerAll(m.registry, collectors...)
}

func (m *Metrics) namespace() string {
	if m.cfg.Namespace == "" {
		return DefaultConfig().Namespace
	}
	return m.cfg.Namespace
}

func registerAll(reg prometheus.Registerer, cs ...prometheus.Collector) error {
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			logger.Warn("注册指标失败", "err", err)
			return err
		}
	}
	return nil
}
