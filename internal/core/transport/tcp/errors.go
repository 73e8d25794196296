package tcp

import "errors"

var (
	// ErrServerClosed 服务已关闭
	ErrServerClosed = errors.New("tcp: server closed")

	// ErrAlreadyServing 服务已在运行
	ErrAlreadyServing = errors.New("tcp: already serving")

	// ErrNegotiationTimeout 协商窗口超时
	ErrNegotiationTimeout = errors.New("tcp: negotiation timeout")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("tcp: invalid config")
)
