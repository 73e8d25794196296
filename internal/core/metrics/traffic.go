package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
)

// UnnegotiatedProtocol 未完成协商的连接在流量统计中的协议名
const UnnegotiatedProtocol = "unnegotiated"

// Stats 流量统计快照
type Stats struct {
	TotalIn  int64   // 总入站字节
	TotalOut int64   // 总出站字节
	RateIn   float64 // 入站速率（字节/秒）
	RateOut  float64 // 出站速率（字节/秒）
}

// protocolTraffic 单个协议链的计数
type protocolTraffic struct {
	in       atomic.Int64
	out      atomic.Int64
	lastSeen atomic.Int64 // Unix nano
}

// Traffic 按协议链统计连接流量
//
// 协议链为协商胜出的初始器名以 "/" 连接，如 "ingest/gzip/json"。
type Traffic struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64
	inRate   *RateMeter
	outRate  *RateMeter

	mu        sync.RWMutex
	protocols map[string]*protocolTraffic
}

// NewTraffic 创建流量统计，clk 为 nil 时使用系统时钟
func NewTraffic(clk clock.Clock) *Traffic {
	if clk == nil {
		clk = clock.New()
	}
	return &Traffic{
		clock:     clk,
		inRate:    NewRateMeter(clk),
		outRate:   NewRateMeter(clk),
		protocols: make(map[string]*protocolTraffic),
	}
}

// Log 记录一条连接的入站与出站字节
func (t *Traffic) Log(protocol string, in, out int64) {
	if protocol == "" {
		protocol = UnnegotiatedProtocol
	}
	t.totalIn.Add(in)
	t.totalOut.Add(out)
	t.inRate.Add(in)
	t.outRate.Add(out)

	pt := t.protocol(protocol)
	pt.in.Add(in)
	pt.out.Add(out)
	pt.lastSeen.Store(t.clock.Now().UnixNano())
}

func (t *Traffic) protocol(name string) *protocolTraffic {
	t.mu.RLock()
	pt := t.protocols[name]
	t.mu.RUnlock()
	if pt != nil {
		return pt
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if pt = t.protocols[name]; pt == nil {
		pt = &protocolTraffic{}
		t.protocols[name] = pt
	}
	return pt
}

// Totals 返回总流量
func (t *Traffic) Totals() Stats {
	return Stats{
		TotalIn:  t.totalIn.Load(),
		TotalOut: t.totalOut.Load(),
		RateIn:   t.inRate.Rate(),
		RateOut:  t.outRate.Rate(),
	}
}

// ForProtocol 返回单个协议链的流量（不含速率）
func (t *Traffic) ForProtocol(protocol string) Stats {
	t.mu.RLock()
	pt := t.protocols[protocol]
	t.mu.RUnlock()
	if pt == nil {
		return Stats{}
	}
	return Stats{TotalIn: pt.in.Load(), TotalOut: pt.out.Load()}
}

// ByProtocol 返回所有协议链的流量
func (t *Traffic) ByProtocol() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]Stats, len(t.protocols))
	for name, pt := range t.protocols {
		result[name] = Stats{TotalIn: pt.in.Load(), TotalOut: pt.out.Load()}
	}
	return result
}

// TrimIdle 清理 since 之后再无流量的协议链
func (t *Traffic) TrimIdle(since time.Time) int {
	cutoff := since.UnixNano()

	t.mu.Lock()
	defer t.mu.Unlock()
	trimmed := 0
	for name, pt := range t.protocols {
		if pt.lastSeen.Load() < cutoff {
			delete(t.protocols, name)
			trimmed++
		}
	}
	return trimmed
}

// Reset 重置所有统计
func (t *Traffic) Reset() {
	t.totalIn.Store(0)
	t.totalOut.Store(0)
	t.inRate.Reset()
	t.outRate.Reset()

	t.mu.Lock()
	t.protocols = make(map[string]*protocolTraffic)
	t.mu.Unlock()
}

// ============================================================================
//                              Prometheus 收集器
// ============================================================================

// trafficCollector 将 Traffic 导出为 Prometheus 指标
type trafficCollector struct {
	traffic *Traffic
	bytes   *prometheus.Desc
	rate    *prometheus.Desc
}

func newTrafficCollector(ns string, t *Traffic) *trafficCollector {
	return &trafficCollector{
		traffic: t,
		bytes: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "traffic", "bytes_total"),
			"Connection bytes by negotiated protocol chain and direction",
			[]string{"protocol", "direction"}, nil,
		),
		rate: prometheus.NewDesc(
			prometheus.BuildFQName(ns, "traffic", "rate_bytes"),
			"Average bytes per second over the last minute",
			[]string{"direction"}, nil,
		),
	}
}

func (c *trafficCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.bytes
	ch <- c.rate
}

func (c *trafficCollector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.traffic.ByProtocol() {
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.TotalIn), name, "in")
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.TotalOut), name, "out")
	}
	totals := c.traffic.Totals()
	ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, totals.RateIn, "in")
	ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue, totals.RateOut, "out")
}
