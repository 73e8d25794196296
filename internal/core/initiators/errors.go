package initiators

import "errors"

// 初始器模块错误定义
var (
	// ErrInvalidPayload 负载无法解析
	ErrInvalidPayload = errors.New("initiators: invalid payload")

	// ErrInvalidLine 行协议格式错误
	ErrInvalidLine = errors.New("initiators: invalid line")

	// ErrLineTooLong 单行超过上限
	ErrLineTooLong = errors.New("initiators: line too long")

	// ErrDecodedTooLarge 解码后数据超过上限
	ErrDecodedTooLarge = errors.New("initiators: decoded payload too large")

	// ErrServerClosed HTTP 服务已关闭
	ErrServerClosed = errors.New("initiators: http server closed")
)
