package router

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/lib/log"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

var logger = log.Logger("core/router")

// Stats 路由计数快照
type Stats struct {
	Received    int64
	Rejected    int64
	Dropped     int64
	Evicted     int64
	Series      int
	Subscribers int
}

// Router 指标路由器
//
// 实现 pkgif.MetricSink 与 pkgif.MetricCatalog，可被任意连接并发调用。
type Router struct {
	cfg     Config
	clock   clock.Clock
	catalog *lru.Cache[string, types.MetricPoint]

	received atomic.Int64
	rejected atomic.Int64
	dropped  atomic.Int64
	evicted  atomic.Int64

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

var (
	_ pkgif.MetricSink    = (*Router)(nil)
	_ pkgif.MetricCatalog = (*Router)(nil)
)

// Option 路由器选项
type Option func(*Router)

// WithClock 设置补齐时间戳使用的时钟
func WithClock(c clock.Clock) Option {
	return func(r *Router) {
		if c != nil {
			r.clock = c
		}
	}
}

// New 创建路由器
func New(cfg Config, opts ...Option) (*Router, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		cfg:   cfg,
		clock: clock.New(),
		subs:  make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}

	catalog, err := lru.NewWithEvict[string, types.MetricPoint](cfg.CatalogSize, func(string, types.MetricPoint) {
		r.evicted.Add(1)
	})
	if err != nil {
		return nil, err
	}
	r.catalog = catalog
	return r, nil
}

// Route 实现 pkgif.MetricSink
//
// 输入切片不会被修改；分发给订阅者的是新切片，订阅者之间共享，只读。
func (r *Router) Route(ctx context.Context, points []types.MetricPoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	now := r.clock.Now().UnixMilli()
	batch := make([]types.MetricPoint, 0, len(points))
	for _, p := range points {
		if err := p.Validate(); err != nil {
			r.rejected.Add(1)
			continue
		}
		if p.TimestampMs == 0 {
			p.TimestampMs = now
		}
		r.remember(p)
		batch = append(batch, p)
	}
	if len(batch) == 0 {
		return nil
	}
	r.received.Add(int64(len(batch)))

	for _, sub := range r.subs {
		select {
		case sub.ch <- batch:
		default:
			sub.dropped.Add(int64(len(batch)))
			r.dropped.Add(int64(len(batch)))
		}
	}
	return nil
}

// remember 更新目录，旧时间戳不覆盖新值
func (r *Router) remember(p types.MetricPoint) {
	if old, ok := r.catalog.Peek(p.Name); ok && old.TimestampMs > p.TimestampMs {
		return
	}
	r.catalog.Add(p.Name, p)
}

// Last 实现 pkgif.MetricCatalog
func (r *Router) Last(name string) (types.MetricPoint, bool) {
	return r.catalog.Get(name)
}

// Names 实现 pkgif.MetricCatalog（按最久未使用到最近使用排列）
func (r *Router) Names() []string {
	return r.catalog.Keys()
}

// Stats 返回计数快照
func (r *Router) Stats() Stats {
	r.mu.RLock()
	subs := len(r.subs)
	r.mu.RUnlock()
	return Stats{
		Received:    r.received.Load(),
		Rejected:    r.rejected.Load(),
		Dropped:     r.dropped.Load(),
		Evicted:     r.evicted.Load(),
		Series:      r.catalog.Len(),
		Subscribers: subs,
	}
}

// Counts 以键值形式返回计数，供命令协议与 API 使用
func (r *Router) Counts() map[string]int64 {
	s := r.Stats()
	return map[string]int64{
		"received":    s.Received,
		"rejected":    s.Rejected,
		"dropped":     s.Dropped,
		"evicted":     s.Evicted,
		"series":      int64(s.Series),
		"subscribers": int64(s.Subscribers),
	}
}

// Subscribe 订阅路由的数据点批次
//
// buffer <= 0 时使用配置的默认缓冲。
func (r *Router) Subscribe(buffer int) (*Subscription, error) {
	if buffer <= 0 {
		buffer = r.cfg.SubscriberBuffer
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	r.nextID++
	sub := &Subscription{
		id:     r.nextID,
		router: r,
		ch:     make(chan []types.MetricPoint, buffer),
	}
	r.subs[sub.id] = sub
	logger.Debug("新增订阅", "id", sub.id, "buffer", buffer)
	return sub, nil
}

func (r *Router) unsubscribe(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.id]; !ok {
		return
	}
	delete(r.subs, sub.id)
	close(sub.ch)
}

// Close 关闭路由器并结束所有订阅
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for id, sub := range r.subs {
		delete(r.subs, id)
		close(sub.ch)
	}
	logger.Debug("路由器已关闭", "received", r.received.Load(), "series", r.catalog.Len())
	return nil
}

// Subscription 数据点订阅
type Subscription struct {
	id      uint64
	router  *Router
	ch      chan []types.MetricPoint
	dropped atomic.Int64
}

// C 返回批次通道，订阅结束时关闭
func (s *Subscription) C() <-chan []types.MetricPoint { return s.ch }

// Dropped 因通道已满被丢弃的数据点数
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close 取消订阅
func (s *Subscription) Close() {
	s.router.unsubscribe(s)
}
