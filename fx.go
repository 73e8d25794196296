package apmrouter

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-apmrouter/internal/core/initiators"
	"github.com/dep2p/go-apmrouter/internal/core/metrics"
	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
	"github.com/dep2p/go-apmrouter/internal/core/router"
	"github.com/dep2p/go-apmrouter/internal/core/transport/tcp"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
)

// buildFxApp 构建 Fx 应用
//
// 依赖顺序：
//  1. router（指标汇与目录）、metrics（观察者与 /metrics）
//  2. initiators（内置初始器，依赖 router 与 metrics handler）
//  3. negotiation（注册表与引擎，依赖 initiators 与观察者）
//  4. transport/tcp（依赖引擎，随生命周期监听与关闭）
func buildFxApp(o *options, r *Router) *fx.App {
	modules := []fx.Option{
		fx.Supply(o.config),

		router.Module(),
		metrics.Module(),
		fx.Provide(
			func(rt *router.Router) initiators.StatsSource { return rt },
			func(rt *router.Router) metrics.CountsSource { return rt },
		),
		initiators.Module(),
		negotiation.Module(),
		tcp.Module(),
	}

	// 自定义初始器排在内置初始器之前
	if len(o.initiators) > 0 {
		extra := o.initiators
		modules = append(modules, fx.Decorate(fx.Annotate(
			func(builtin []pkgif.Initiator) []pkgif.Initiator {
				all := make([]pkgif.Initiator, 0, len(extra)+len(builtin))
				all = append(all, extra...)
				return append(all, builtin...)
			},
			fx.ParamTags(`name:"initiators"`),
			fx.ResultTags(`name:"initiators"`),
		)))
	}

	if len(o.fxOptions) > 0 {
		modules = append(modules, o.fxOptions...)
	}

	modules = append(modules,
		fx.Populate(&r.server, &r.engine, &r.router, &r.metrics, &r.initiators),
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
	return fx.New(modules...)
}

// 编译期确认 fx 装配依赖的类型
var (
	_ initiators.StatsSource = (*router.Router)(nil)
	_ metrics.CountsSource   = (*router.Router)(nil)
	_ negotiation.Observer   = (*metrics.Metrics)(nil)
)
