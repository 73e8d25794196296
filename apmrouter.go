package apmrouter

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-apmrouter/config"
	"github.com/dep2p/go-apmrouter/internal/core/initiators"
	"github.com/dep2p/go-apmrouter/internal/core/metrics"
	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
	"github.com/dep2p/go-apmrouter/internal/core/router"
	"github.com/dep2p/go-apmrouter/internal/core/transport/tcp"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/lib/log"
)

var logger = log.Logger("apmrouter")

// 生命周期超时
const (
	startTimeout = 30 * time.Second
	stopTimeout  = 15 * time.Second
)

// Router 单端口 APM 接入路由
type Router struct {
	config *config.Config
	app    *fx.App

	server     *tcp.Server
	engine     *negotiation.Engine
	router     *router.Router
	metrics    *metrics.Metrics
	initiators *initiators.Set

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 创建路由但不启动
//
//	r, err := apmrouter.New(
//	    apmrouter.WithConfigFile("apmrouter.json"),
//	    apmrouter.WithListenAddr(":7070"),
//	)
func New(opts ...Option) (*Router, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	r := &Router{config: o.config}
	r.app = buildFxApp(o, r)
	if err := r.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return r, nil
}

// Start 开始监听并接受连接
func (r *Router) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.started {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := r.app.Start(startCtx); err != nil {
		logger.Error("启动失败", "err", err)
		return fmt.Errorf("start: %w", err)
	}
	r.started = true

	logger.Info("APM 路由已启动",
		"addr", r.server.Addr().String(),
		"initiators", r.initiators.Names(),
		"maxInitiatorBytes", r.engine.Config().MaxInitiatorBytes)
	return nil
}

// Close 停止监听并关闭所有连接，重复调用无副作用
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if !r.started {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := r.app.Stop(ctx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	logger.Info("APM 路由已关闭")
	return nil
}

// Addr 返回实际监听地址，未启动时为 nil
func (r *Router) Addr() net.Addr {
	if r.server == nil {
		return nil
	}
	return r.server.Addr()
}

// Config 返回生效的配置
func (r *Router) Config() *config.Config { return r.config }

// Initiators 返回按注册顺序排列的初始器名
func (r *Router) Initiators() []string {
	return r.engine.Registry().Names()
}

// Catalog 返回最新值目录
func (r *Router) Catalog() pkgif.MetricCatalog { return r.router }

// Stats 返回路由计数
func (r *Router) Stats() map[string]int64 { return r.router.Counts() }

// Subscribe 订阅路由的数据点批次
func (r *Router) Subscribe(buffer int) (*router.Subscription, error) {
	return r.router.Subscribe(buffer)
}

// Metrics 返回监控指标，禁用时为 nil
func (r *Router) Metrics() *metrics.Metrics { return r.metrics }
