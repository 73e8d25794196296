package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-apmrouter/pkg/lib/log"
)

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Validate 验证整个配置，返回所有问题的合并错误
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	return multierr.Combine(
		c.Listen.Validate(),
		c.Negotiation.Validate(),
		c.Aggregation.Validate(),
		c.Catalog.Validate(),
		c.Log.Validate(),
	)
}

// Validate 验证监听配置
func (c ListenConfig) Validate() error {
	var err error
	if c.Addr == "" {
		err = multierr.Append(err, invalid("listen.addr is empty"))
	}
	if c.MaxConnections < 0 {
		err = multierr.Append(err, invalid("listen.max_connections must be >= 0"))
	}
	if c.AcceptRate < 0 {
		err = multierr.Append(err, invalid("listen.accept_rate must be >= 0"))
	}
	if c.AcceptRate > 0 && c.AcceptBurst <= 0 {
		err = multierr.Append(err, invalid("listen.accept_burst must be > 0 when accept_rate is set"))
	}
	if c.ReadBufferSize <= 0 {
		err = multierr.Append(err, invalid("listen.read_buffer_size must be > 0"))
	}
	return err
}

// Validate 验证协商配置
func (c NegotiationConfig) Validate() error {
	var err error
	if c.MaxInitiatorBytes <= 0 {
		err = multierr.Append(err, invalid("negotiation.max_initiator_bytes must be > 0"))
	}
	if c.Timeout < 0 {
		err = multierr.Append(err, invalid("negotiation.timeout must be >= 0"))
	}
	if c.IdleTimeout < 0 {
		err = multierr.Append(err, invalid("negotiation.idle_timeout must be >= 0"))
	}
	return err
}

// Validate 验证聚合配置
func (c AggregationConfig) Validate() error {
	var err error
	if c.MaxPayloadBytes <= 0 {
		err = multierr.Append(err, invalid("aggregation.max_payload_bytes must be > 0"))
	}
	if c.MaxDecodedBytes <= 0 {
		err = multierr.Append(err, invalid("aggregation.max_decoded_bytes must be > 0"))
	}
	return err
}

// Validate 验证目录配置
func (c CatalogConfig) Validate() error {
	var err error
	if c.Size <= 0 {
		err = multierr.Append(err, invalid("catalog.size must be > 0"))
	}
	if c.SubscriberBuffer < 0 {
		err = multierr.Append(err, invalid("catalog.subscriber_buffer must be >= 0"))
	}
	return err
}

// Validate 验证日志配置
func (c LogConfig) Validate() error {
	var err error
	if _, perr := log.ParseLevel(c.Level); perr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %v", ErrInvalidConfig, perr))
	}
	switch log.Format(c.Format) {
	case "", log.FormatText, log.FormatJSON:
	default:
		err = multierr.Append(err, invalid(fmt.Sprintf("log.format %q is not text/json", c.Format)))
	}
	return err
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
