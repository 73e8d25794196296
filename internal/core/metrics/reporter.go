package metrics

import (
	"time"
)

// Reporter 连接级指标上报接口，由传输层在连接建立与结束时调用
type Reporter interface {
	// ConnOpened 新连接已接受
	ConnOpened()

	// ConnClosed 连接结束；protocol 为协商胜出的初始器链，未完成协商时为空
	ConnClosed(protocol string, in, out int64, elapsed time.Duration)
}

// NopReporter 空上报
type NopReporter struct{}

var _ Reporter = NopReporter{}

func (NopReporter) ConnOpened()                                    {}
func (NopReporter) ConnClosed(string, int64, int64, time.Duration) {}

// 确保 Metrics 实现 Reporter 接口
var _ Reporter = (*Metrics)(nil)
