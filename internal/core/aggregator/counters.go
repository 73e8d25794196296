package aggregator

import "sync/atomic"

// Counters 引擎范围的聚合计数器
type Counters struct {
	inFlight  atomic.Int64
	completed atomic.Int64
	discarded atomic.Int64
	bytes     atomic.Int64
}

// NewCounters 创建计数器
func NewCounters() *Counters {
	return &Counters{}
}

// InFlight 进行中的聚合数
func (c *Counters) InFlight() int64 { return c.inFlight.Load() }

// Completed 已交付的聚合数
func (c *Counters) Completed() int64 { return c.completed.Load() }

// Discarded 被丢弃的聚合数
func (c *Counters) Discarded() int64 { return c.discarded.Load() }

// DeliveredBytes 已交付的总字节数
func (c *Counters) DeliveredBytes() int64 { return c.bytes.Load() }

// Snapshot 计数器快照
type Snapshot struct {
	InFlight       int64 `json:"inFlight"`
	Completed      int64 `json:"completed"`
	Discarded      int64 `json:"discarded"`
	DeliveredBytes int64 `json:"deliveredBytes"`
}

// Snapshot 返回当前快照
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		InFlight:       c.InFlight(),
		Completed:      c.Completed(),
		Discarded:      c.Discarded(),
		DeliveredBytes: c.DeliveredBytes(),
	}
}
