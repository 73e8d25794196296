package negotiation

import (
	"time"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

// Observer 协商过程观察者
//
// 由指标模块实现。回调在连接 goroutine 中同步执行，必须并发安全且不阻塞。
type Observer interface {
	// InitiatorMatched 初始器在某阶段胜出并安装成功
	InitiatorMatched(name string, phase types.Phase)

	// InitiatorFailed 初始器对某连接失败；installErr 区分安装失败与未匹配
	InitiatorFailed(name string, phase types.Phase, installErr bool)

	// NegotiationCompleted 协商成功（下游阶段已安装）
	NegotiationCompleted(bytes int, elapsed time.Duration)

	// NegotiationFailed 协商失败
	NegotiationFailed(phase types.Phase, bytes int, elapsed time.Duration)
}

// NopObserver 空观察者
type NopObserver struct{}

var _ Observer = NopObserver{}

func (NopObserver) InitiatorMatched(string, types.Phase)              {}
func (NopObserver) InitiatorFailed(string, types.Phase, bool)         {}
func (NopObserver) NegotiationCompleted(int, time.Duration)           {}
func (NopObserver) NegotiationFailed(types.Phase, int, time.Duration) {}
