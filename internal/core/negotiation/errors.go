package negotiation

import "errors"

// 协商模块错误定义
var (
	// ErrNegotiationExhausted 字节预算耗尽或所有初始器均失败，连接终止
	ErrNegotiationExhausted = errors.New("negotiation: exhausted without a match")

	// ErrInstallFailed 初始器匹配成功但安装失败
	ErrInstallFailed = errors.New("negotiation: initiator install failed")

	// ErrInvalidTransition 初始器返回了非前进的阶段
	ErrInvalidTransition = errors.New("negotiation: invalid phase transition")

	// ErrNoStage 进入内容阶段但未设置下游阶段
	ErrNoStage = errors.New("negotiation: initiator set no stage")

	// ErrNoDecoder 进入解码阶段但未设置解码器
	ErrNoDecoder = errors.New("negotiation: initiator set no decoder")

	// ErrDecodeFailed 解码失败
	ErrDecodeFailed = errors.New("negotiation: decode failed")

	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("negotiation: session closed")

	// ErrNilInitiator 注册了 nil 初始器
	ErrNilInitiator = errors.New("negotiation: nil initiator")

	// ErrDuplicateInitiator 初始器名称重复
	ErrDuplicateInitiator = errors.New("negotiation: initiator already registered")

	// ErrInvalidInitiator 初始器属性无效
	ErrInvalidInitiator = errors.New("negotiation: invalid initiator")
)
