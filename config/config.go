// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置给出默认值并可单独校验。
// 支持从 JSON 加载和保存。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Listen.Addr = ":7070"
//	cfg.Negotiation.MaxInitiatorBytes = 2048
//
//	// 从文件加载
//	cfg, err := config.LoadFile("apmrouter.json")
//
//	// 应用部署预设
//	err = config.ApplyPreset(cfg, config.PresetEdge)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config 是 apmrouter 的完整配置结构
type Config struct {
	// Listen 监听配置
	Listen ListenConfig `json:"listen"`

	// Negotiation 协议协商配置
	Negotiation NegotiationConfig `json:"negotiation"`

	// Aggregation 完整负载聚合配置
	Aggregation AggregationConfig `json:"aggregation"`

	// Catalog 指标目录配置
	Catalog CatalogConfig `json:"catalog"`

	// Metrics 自身监控指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Log 日志配置
	Log LogConfig `json:"log"`

	// Initiators 内置初始器开关
	Initiators InitiatorsConfig `json:"initiators"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Listen:      DefaultListenConfig(),
		Negotiation: DefaultNegotiationConfig(),
		Aggregation: DefaultAggregationConfig(),
		Catalog:     DefaultCatalogConfig(),
		Metrics:     DefaultMetricsConfig(),
		Log:         DefaultLogConfig(),
		Initiators:  DefaultInitiatorsConfig(),
	}
}

// ============================================================================
//                              子配置
// ============================================================================

// ListenConfig 监听配置
type ListenConfig struct {
	// Addr 监听地址，一个端口承载所有协议
	Addr string `json:"addr"`

	// MaxConnections 最大并发连接数，0 表示不限制
	MaxConnections int `json:"max_connections"`

	// AcceptRate 每秒接受的新连接数上限，0 表示不限制
	AcceptRate float64 `json:"accept_rate"`

	// AcceptBurst 接受突发量
	AcceptBurst int `json:"accept_burst"`

	// ReadBufferSize 每个连接的读缓冲大小
	ReadBufferSize int `json:"read_buffer_size"`
}

// DefaultListenConfig 返回默认监听配置
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		Addr:           ":7070",
		MaxConnections: 4096,
		AcceptRate:     0,
		AcceptBurst:    64,
		ReadBufferSize: 4096,
	}
}

// NegotiationConfig 协议协商配置
type NegotiationConfig struct {
	// MaxInitiatorBytes 协商阶段最多检查的字节数
	MaxInitiatorBytes int `json:"max_initiator_bytes"`

	// Timeout 协商窗口的墙钟超时（由传输层以读超时实现）
	Timeout Duration `json:"timeout"`

	// IdleTimeout 协商完成后的连接空闲超时
	IdleTimeout Duration `json:"idle_timeout"`
}

// DefaultNegotiationConfig 返回默认协商配置
func DefaultNegotiationConfig() NegotiationConfig {
	return NegotiationConfig{
		MaxInitiatorBytes: 1024,
		Timeout:           Duration(10 * time.Second),
		IdleTimeout:       Duration(5 * time.Minute),
	}
}

// AggregationConfig 完整负载聚合配置
type AggregationConfig struct {
	// MaxPayloadBytes 单个连接聚合的最大字节数
	MaxPayloadBytes int64 `json:"max_payload_bytes"`

	// MaxDecodedBytes 解压后的最大字节数
	MaxDecodedBytes int64 `json:"max_decoded_bytes"`
}

// DefaultAggregationConfig 返回默认聚合配置
func DefaultAggregationConfig() AggregationConfig {
	return AggregationConfig{
		MaxPayloadBytes: 16 << 20,
		MaxDecodedBytes: 64 << 20,
	}
}

// CatalogConfig 指标目录配置
type CatalogConfig struct {
	// Size 目录最多保留的序列数（LRU 淘汰）
	Size int `json:"size"`

	// SubscriberBuffer 订阅者通道缓冲
	SubscriberBuffer int `json:"subscriber_buffer"`
}

// DefaultCatalogConfig 返回默认目录配置
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		Size:             10000,
		SubscriberBuffer: 256,
	}
}

// MetricsConfig 自身监控指标配置
type MetricsConfig struct {
	// Enabled 是否启用 Prometheus 指标
	Enabled bool `json:"enabled"`

	// Namespace 指标命名空间
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "apmrouter",
	}
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别 debug/info/warn/error
	Level string `json:"level"`

	// Format 输出格式 text/json
	Format string `json:"format"`

	// File 日志文件，为空时输出到 stderr
	File string `json:"file,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// InitiatorsConfig 内置初始器开关
type InitiatorsConfig struct {
	HTTP        bool `json:"http"`
	Multistream bool `json:"multistream"`
	Command     bool `json:"command"`
	Batch       bool `json:"batch"`
	Ingest      bool `json:"ingest"`
}

// DefaultInitiatorsConfig 默认全部启用
func DefaultInitiatorsConfig() InitiatorsConfig {
	return InitiatorsConfig{
		HTTP:        true,
		Multistream: true,
		Command:     true,
		Batch:       true,
		Ingest:      true,
	}
}

// ============================================================================
//                              JSON 加载/保存
// ============================================================================

// FromJSON 从 JSON 解析配置
//
// 未出现的字段保留默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 从文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return FromJSON(data)
}

// ToJSON 序列化配置
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
