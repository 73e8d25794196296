package metrics

import "errors"

// 指标模块错误定义
var (
	// ErrDisabled 指标未启用
	ErrDisabled = errors.New("metrics: disabled")
)
