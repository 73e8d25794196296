package initiators

import (
	"time"

	"github.com/dep2p/go-apmrouter/config"
)

// Config 内置初始器配置
type Config struct {
	// 协议初始器开关
	HTTP        bool
	Multistream bool
	Command     bool
	Batch       bool
	Ingest      bool

	// MaxDecodedBytes 解码后负载上限，0 表示不限制
	MaxDecodedBytes int64

	// MaxPayloadBytes HTTP 请求体上限，0 表示不限制
	MaxPayloadBytes int64

	// ReadHeaderTimeout HTTP 请求头读取超时
	ReadHeaderTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HTTP:              true,
		Multistream:       true,
		Command:           true,
		Batch:             true,
		Ingest:            true,
		MaxDecodedBytes:   64 << 20,
		MaxPayloadBytes:   16 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建初始器配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		HTTP:              cfg.Initiators.HTTP,
		Multistream:       cfg.Initiators.Multistream,
		Command:           cfg.Initiators.Command,
		Batch:             cfg.Initiators.Batch,
		Ingest:            cfg.Initiators.Ingest,
		MaxDecodedBytes:   cfg.Aggregation.MaxDecodedBytes,
		MaxPayloadBytes:   cfg.Aggregation.MaxPayloadBytes,
		ReadHeaderTimeout: cfg.Negotiation.Timeout.Duration(),
	}
}
