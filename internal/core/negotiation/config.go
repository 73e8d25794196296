package negotiation

import (
	"fmt"

	"github.com/dep2p/go-apmrouter/config"
)

// Config 协商引擎配置
type Config struct {
	// MaxInitiatorBytes 协商阶段最多检查的字节数
	MaxInitiatorBytes int

	// MaxPayloadBytes 完整负载聚合上限，0 表示不限制
	MaxPayloadBytes int64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		MaxInitiatorBytes: 1024,
		MaxPayloadBytes:   16 << 20,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.MaxInitiatorBytes <= 0 {
		return fmt.Errorf("negotiation: max initiator bytes must be > 0, got %d", c.MaxInitiatorBytes)
	}
	if c.MaxPayloadBytes < 0 {
		return fmt.Errorf("negotiation: max payload bytes must be >= 0, got %d", c.MaxPayloadBytes)
	}
	return nil
}

// WithMaxInitiatorBytes 设置字节预算
func (c Config) WithMaxInitiatorBytes(n int) Config {
	c.MaxInitiatorBytes = n
	return c
}

// ConfigFromUnified 从统一配置创建协商配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		MaxInitiatorBytes: cfg.Negotiation.MaxInitiatorBytes,
		MaxPayloadBytes:   cfg.Aggregation.MaxPayloadBytes,
	}
}
