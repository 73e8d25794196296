package router

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-apmrouter/config"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Router  *Router
	Sink    pkgif.MetricSink
	Catalog pkgif.MetricCatalog
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	r, err := New(ConfigFromUnified(input.UnifiedCfg))
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{
		Router:  r,
		Sink:    r,
		Catalog: r,
	}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("router",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

func registerLifecycle(lc fx.Lifecycle, r *Router) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return r.Close()
		},
	})
}
