package router

import (
	"fmt"

	"github.com/dep2p/go-apmrouter/config"
)

// Config 路由配置
type Config struct {
	// CatalogSize 目录最多保留的序列数
	CatalogSize int

	// SubscriberBuffer 订阅者通道默认缓冲批数
	SubscriberBuffer int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		CatalogSize:      10000,
		SubscriberBuffer: 256,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.CatalogSize <= 0 {
		return fmt.Errorf("%w: catalog size must be > 0", ErrInvalidConfig)
	}
	if c.SubscriberBuffer < 0 {
		return fmt.Errorf("%w: subscriber buffer must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// ConfigFromUnified 从统一配置创建路由配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		CatalogSize:      cfg.Catalog.Size,
		SubscriberBuffer: cfg.Catalog.SubscriberBuffer,
	}
}
