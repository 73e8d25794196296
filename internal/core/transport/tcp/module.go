package tcp

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-apmrouter/config"
	"github.com/dep2p/go-apmrouter/internal/core/metrics"
	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Engine     *negotiation.Engine

	// Reporter 连接指标（可选，指标模块提供）
	Reporter metrics.Reporter `optional:"true"`
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Server *Server
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	srv, err := NewServer(input.Engine, ConfigFromUnified(input.UnifiedCfg),
		WithReporter(input.Reporter))
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{Server: srv}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("transport/tcp",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

// registerLifecycle 启动时监听，停止时关闭全部连接
func registerLifecycle(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start(ctx)
		},
		OnStop: func(context.Context) error {
			return srv.Close()
		},
	})
}
