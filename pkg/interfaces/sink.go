package interfaces

import (
	"context"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

// MetricSink 指标汇，内容阶段解码出的数据点交给它路由
type MetricSink interface {
	Route(ctx context.Context, points []types.MetricPoint) error
}

// MetricCatalog 最新值目录（只读）
type MetricCatalog interface {
	// Last 返回序列最新数据点
	Last(name string) (types.MetricPoint, bool)

	// Names 返回目录内的序列名
	Names() []string
}
