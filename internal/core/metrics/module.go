package metrics

import (
	"errors"
	"net/http"

	"go.uber.org/fx"

	"github.com/dep2p/go-apmrouter/config"
	"github.com/dep2p/go-apmrouter/internal/core/aggregator"
	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
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
//
// 指标禁用时所有字段为 nil，依赖方按可选依赖处理。
type ModuleOutput struct {
	fx.Out

	Metrics  *Metrics
	Observer negotiation.Observer
	Reporter Reporter
	Handler  http.Handler `name:"metrics_handler"`
}

// ProvideServices 提供模块服务
func ProvideServices(input ModuleInput) (ModuleOutput, error) {
	m, err := New(ConfigFromUnified(input.UnifiedCfg))
	if errors.Is(err, ErrDisabled) {
		logger.Info("监控指标已禁用")
		return ModuleOutput{}, nil
	}
	if err != nil {
		return ModuleOutput{}, err
	}
	return ModuleOutput{
		Metrics:  m,
		Observer: m,
		Reporter: m,
		Handler:  m.Handler(),
	}, nil
}

// collectorParams 外部计数来源
type collectorParams struct {
	fx.In

	Metrics  *Metrics
	Counters *aggregator.Counters `optional:"true"`
	Router   CountsSource         `optional:"true"`
}

// registerCollectors 导出聚合与路由计数
func registerCollectors(p collectorParams) error {
	if p.Metrics == nil {
		return nil
	}
	if err := p.Metrics.RegisterAggregation(p.Counters); err != nil {
		return err
	}
	return p.Metrics.RegisterRouter(p.Router)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideServices),
		fx.Invoke(registerCollectors),
	)
}
