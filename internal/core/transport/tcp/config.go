package tcp

import (
	"fmt"
	"time"

	"github.com/dep2p/go-apmrouter/config"
)

// Config TCP 服务配置
type Config struct {
	// ListenAddr 监听地址
	ListenAddr string

	// MaxConnections 最大并发连接数，0 表示不限制
	MaxConnections int

	// AcceptRate 每秒接受的新连接数上限，0 表示不限制
	AcceptRate float64

	// AcceptBurst 接受突发量
	AcceptBurst int

	// ReadBufferSize 每个连接的读缓冲大小
	ReadBufferSize int

	// NegotiationTimeout 协商窗口读超时，0 表示不限制
	NegotiationTimeout time.Duration

	// IdleTimeout 协商完成后的空闲读超时，0 表示不限制
	IdleTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":7070",
		MaxConnections:     4096,
		AcceptBurst:        64,
		ReadBufferSize:     4096,
		NegotiationTimeout: 10 * time.Second,
		IdleTimeout:        5 * time.Minute,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("%w: read buffer size must be > 0", ErrInvalidConfig)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("%w: max connections must be >= 0", ErrInvalidConfig)
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("%w: accept rate must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建 TCP 服务配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		ListenAddr:         cfg.Listen.Addr,
		MaxConnections:     cfg.Listen.MaxConnections,
		AcceptRate:         cfg.Listen.AcceptRate,
		AcceptBurst:        cfg.Listen.AcceptBurst,
		ReadBufferSize:     cfg.Listen.ReadBufferSize,
		NegotiationTimeout: cfg.Negotiation.Timeout.Duration(),
		IdleTimeout:        cfg.Negotiation.IdleTimeout.Duration(),
	}
}
