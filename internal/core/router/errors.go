package router

import "errors"

// 路由模块错误定义
var (
	// ErrClosed 路由器已关闭
	ErrClosed = errors.New("router: closed")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("router: invalid config")
)
