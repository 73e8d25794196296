package config

import (
	"fmt"
	"time"
)

// 预设名称
const (
	// PresetDefault 默认配置，不做修改
	PresetDefault = "default"
	// PresetEdge 边缘节点：低资源占用
	PresetEdge = "edge"
	// PresetGateway 网关：高并发、大目录
	PresetGateway = "gateway"
	// PresetMinimal 最小配置：仅数据接入协议，关闭自身监控
	PresetMinimal = "minimal"
)

// PresetNames 返回支持的预设名称
func PresetNames() []string {
	return []string{PresetDefault, PresetEdge, PresetGateway, PresetMinimal}
}

// ApplyPreset 应用预设配置
//
// 预设只修改与部署规模相关的字段，监听地址与日志配置保持不变。
// 空名称等同于 "default"。
func ApplyPreset(cfg *Config, name string) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}

	switch name {
	case "", PresetDefault:
		return nil
	case PresetEdge:
		applyEdgePreset(cfg)
	case PresetGateway:
		applyGatewayPreset(cfg)
	case PresetMinimal:
		applyMinimalPreset(cfg)
	default:
		return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
	return nil
}

// applyEdgePreset 边缘节点
//
// 少量连接、较小的负载上限与目录，协商窗口收紧以快速回收慢连接。
func applyEdgePreset(cfg *Config) {
	cfg.Listen.MaxConnections = 256
	cfg.Listen.AcceptRate = 100
	cfg.Listen.AcceptBurst = 32
	cfg.Listen.ReadBufferSize = 2048

	cfg.Negotiation.Timeout = Duration(5 * time.Second)
	cfg.Negotiation.IdleTimeout = Duration(time.Minute)

	cfg.Aggregation.MaxPayloadBytes = 1 << 20
	cfg.Aggregation.MaxDecodedBytes = 4 << 20

	cfg.Catalog.Size = 1000
	cfg.Catalog.SubscriberBuffer = 64
}

// applyGatewayPreset 网关
func applyGatewayPreset(cfg *Config) {
	cfg.Listen.MaxConnections = 65536
	cfg.Listen.AcceptRate = 0
	cfg.Listen.AcceptBurst = 1024
	cfg.Listen.ReadBufferSize = 16384

	cfg.Aggregation.MaxPayloadBytes = 64 << 20
	cfg.Aggregation.MaxDecodedBytes = 256 << 20

	cfg.Catalog.Size = 100000
	cfg.Catalog.SubscriberBuffer = 4096
}

// applyMinimalPreset 最小配置
//
// 只保留 ingest 与 batch 两种数据接入协议，适合测试与嵌入式部署。
func applyMinimalPreset(cfg *Config) {
	cfg.Initiators = InitiatorsConfig{
		Batch:  true,
		Ingest: true,
	}
	cfg.Metrics.Enabled = false
	cfg.Listen.MaxConnections = 64
	cfg.Catalog.Size = 256
	cfg.Catalog.SubscriberBuffer = 16
}
