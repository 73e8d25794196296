package apmrouter

import (
	"errors"
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-apmrouter/config"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
)

// Option 配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config     *config.Config
	initiators []pkgif.Initiator
	fxOptions  []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// WithConfig 使用完整配置（替换默认配置，之后的选项在其上修改）
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("nil config")
		}
		copied := *cfg
		o.config = &copied
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 在当前配置上应用部署预设（见 config.PresetNames）
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithListenAddr 设置监听地址
func WithListenAddr(addr string) Option {
	return func(o *options) error {
		if addr == "" {
			return errors.New("empty listen address")
		}
		o.config.Listen.Addr = addr
		return nil
	}
}

// WithMaxInitiatorBytes 设置协商字节预算
func WithMaxInitiatorBytes(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("max initiator bytes must be > 0, got %d", n)
		}
		o.config.Negotiation.MaxInitiatorBytes = n
		return nil
	}
}

// WithInitiators 注册自定义初始器
//
// 自定义初始器按给定顺序排在内置初始器之前，在同一类别内优先判定。
func WithInitiators(inits ...pkgif.Initiator) Option {
	return func(o *options) error {
		for _, init := range inits {
			if init == nil {
				return errors.New("nil initiator")
			}
		}
		o.initiators = append(o.initiators, inits...)
		return nil
	}
}

// WithFxOptions 追加 fx 选项（高级用法）
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.fxOptions = append(o.fxOptions, opts...)
		return nil
	}
}
