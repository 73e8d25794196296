package aggregator

import (
	"fmt"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
)

// Options 聚合选项
type Options struct {
	// Counters 共享计数器，为 nil 时使用私有计数器
	Counters *Counters

	// MaxBytes 最大聚合字节数，0 表示不限制
	MaxBytes int64

	// CloseCompletes 连接关闭是否视为负载完成
	CloseCompletes bool

	// Terminator 负载结束信号，可为 nil
	Terminator pkgif.PayloadTerminator
}

// OptionsFor 根据初始器的可选能力生成聚合选项
func OptionsFor(init pkgif.Initiator, counters *Counters, maxBytes int64) Options {
	opts := Options{
		Counters:       counters,
		MaxBytes:       maxBytes,
		CloseCompletes: true,
	}
	if cc, ok := init.(pkgif.CloseCompleter); ok {
		opts.CloseCompletes = cc.CloseCompletes()
	}
	if term, ok := init.(pkgif.PayloadTerminator); ok {
		opts.Terminator = term
	}
	return opts
}

// state 聚合状态
type state int

const (
	stateCollecting state = iota
	stateDelivered
	stateDiscarded
)

// Aggregator 完整负载聚合器
//
// 实现 pkgif.Stage 与 pkgif.Aborter。
type Aggregator struct {
	next   pkgif.Stage
	opts   Options
	chunks [][]byte
	tail   []byte
	size   int64
	state  state
}

var (
	_ pkgif.Stage   = (*Aggregator)(nil)
	_ pkgif.Aborter = (*Aggregator)(nil)
)

// New 创建聚合器，计入进行中的聚合
func New(next pkgif.Stage, opts Options) *Aggregator {
	if opts.Counters == nil {
		opts.Counters = NewCounters()
	}
	opts.Counters.inFlight.Add(1)
	return &Aggregator{
		next: next,
		opts: opts,
	}
}

// Write 追加一块数据（拷贝一次）
func (a *Aggregator) Write(p []byte) error {
	switch a.state {
	case stateDelivered:
		return ErrAlreadyDelivered
	case stateDiscarded:
		return ErrDiscarded
	}

	if len(p) > 0 {
		if a.opts.MaxBytes > 0 && a.size+int64(len(p)) > a.opts.MaxBytes {
			a.discard()
			return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, a.size+int64(len(p)), a.opts.MaxBytes)
		}
		chunk := make([]byte, len(p))
		copy(chunk, p)
		a.chunks = append(a.chunks, chunk)
		a.size += int64(len(p))
	}

	if a.opts.Terminator == nil {
		return nil
	}
	a.keepTail(p)
	if a.opts.Terminator.PayloadEnded(a.tail) {
		return a.flush()
	}
	return nil
}

// keepTail 保留负载末尾 PayloadTailSize 字节，跨分片判断结束信号
func (a *Aggregator) keepTail(p []byte) {
	n := pkgif.PayloadTailSize
	if len(p) >= n {
		a.tail = append(a.tail[:0], p[len(p)-n:]...)
		return
	}
	a.tail = append(a.tail, p...)
	if over := len(a.tail) - n; over > 0 {
		a.tail = append(a.tail[:0], a.tail[over:]...)
	}
}

// Close 连接关闭
//
// 关闭视为完成时交付负载，否则丢弃。重复调用无副作用。
func (a *Aggregator) Close() error {
	if a.state != stateCollecting {
		return nil
	}
	if !a.opts.CloseCompletes {
		a.discard()
		return nil
	}
	return a.flush()
}

// Abort 异常终止，丢弃已收数据
func (a *Aggregator) Abort() {
	if a.state == stateCollecting {
		a.discard()
	}
}

// Size 已聚合字节数
func (a *Aggregator) Size() int64 {
	return a.size
}

// Delivered 是否已交付
func (a *Aggregator) Delivered() bool {
	return a.state == stateDelivered
}

// flush 合成一个缓冲区交付一次
func (a *Aggregator) flush() error {
	composite := make([]byte, 0, a.size)
	for _, c := range a.chunks {
		composite = append(composite, c...)
	}
	a.chunks = nil
	a.tail = nil
	a.state = stateDelivered
	a.opts.Counters.inFlight.Add(-1)
	a.opts.Counters.completed.Add(1)
	a.opts.Counters.bytes.Add(int64(len(composite)))

	werr := a.next.Write(composite)
	cerr := a.next.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

func (a *Aggregator) discard() {
	a.chunks = nil
	a.tail = nil
	a.size = 0
	a.state = stateDiscarded
	a.opts.Counters.inFlight.Add(-1)
	a.opts.Counters.discarded.Add(1)
	if ab, ok := a.next.(pkgif.Aborter); ok {
		ab.Abort()
	}
}
