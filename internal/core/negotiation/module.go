package negotiation

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-apmrouter/config"
	"github.com/dep2p/go-apmrouter/internal/core/aggregator"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`

	// Initiators 内置与用户初始器，按提供顺序注册
	Initiators []pkgif.Initiator `name:"initiators" optional:"true"`

	// Observer 协商观察者（可选，指标模块提供）
	Observer Observer `optional:"true"`
}

// ============================================================================
//                              模块输出服务
// ============================================================================

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Registry *Registry
	Engine   *Engine
	Counters *aggregator.Counters
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	registry := NewRegistry()
	if err := registry.Register(input.Initiators...); err != nil {
		return ModuleOutput{}, err
	}

	counters := aggregator.NewCounters()
	engine, err := NewEngine(registry, ConfigFromUnified(input.UnifiedCfg),
		WithObserver(input.Observer),
		WithCounters(counters),
	)
	if err != nil {
		return ModuleOutput{}, err
	}

	logger.Info("协商引擎已创建",
		"initiators", registry.Names(),
		"maxInitiatorBytes", engine.Config().MaxInitiatorBytes)

	return ModuleOutput{
		Registry: registry,
		Engine:   engine,
		Counters: counters,
	}, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("negotiation",
		fx.Provide(ProvideServices),
	)
}
