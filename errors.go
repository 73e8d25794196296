package apmrouter

import "errors"

// 公共错误定义
var (
	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("apmrouter: already started")

	// ErrNotStarted 未启动
	ErrNotStarted = errors.New("apmrouter: not started")

	// ErrClosed 已关闭
	ErrClosed = errors.New("apmrouter: closed")
)
