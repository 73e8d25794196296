package initiators

import (
	"context"
	"net/http"

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

	Sink    pkgif.MetricSink    `optional:"true"`
	Catalog pkgif.MetricCatalog `optional:"true"`
	Stats   StatsSource         `optional:"true"`

	// MetricsHandler Prometheus 暴露 handler（可选）
	MetricsHandler http.Handler `name:"metrics_handler" optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Set *Set

	// Initiators 供协商模块注册
	Initiators []pkgif.Initiator `name:"initiators"`
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	set, err := Builtins(ConfigFromUnified(input.UnifiedCfg), Deps{
		Sink:    input.Sink,
		Catalog: input.Catalog,
		Stats:   input.Stats,
		Metrics: input.MetricsHandler,
	})
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{
		Set:        set,
		Initiators: set.Initiators(),
	}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("initiators",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 停止时关闭 HTTP 服务
func registerLifecycle(lc fx.Lifecycle, set *Set) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return set.Close(ctx)
		},
	})
}
