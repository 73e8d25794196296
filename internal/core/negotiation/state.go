package negotiation

import (
	"time"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

// State 单个连接的协商状态
//
// 只被拥有该连接的 goroutine 访问，不加锁，也不在连接之间共享。
type State struct {
	phase     types.Phase
	snap      *snapshot
	failed    [types.NumCategories]map[int]struct{}
	buf       []byte
	bytesSeen int
	budget    int
	started   time.Time
	winners   []string
}

func newState(snap *snapshot, budget int, now time.Time) *State {
	return &State{
		phase:   types.PhaseInit,
		snap:    snap,
		budget:  budget,
		started: now,
	}
}

// Phase 当前阶段
func (s *State) Phase() types.Phase { return s.phase }

// BytesSeen 协商期间检查过的累计字节数（单调不减）
func (s *State) BytesSeen() int { return s.bytesSeen }

// Buffered 当前检测阶段已累积的字节数
func (s *State) Buffered() int { return len(s.buf) }

// Budget 字节预算
func (s *State) Budget() int { return s.budget }

// Winners 已安装的初始器名称（按阶段顺序）
func (s *State) Winners() []string {
	return append([]string(nil), s.winners...)
}

// Failed 返回某类别中已失败的初始器名称
func (s *State) Failed(c types.Category) []string {
	if !c.Valid() || s.snap == nil {
		return nil
	}
	var names []string
	for i, init := range s.snap.list(c) {
		if _, ok := s.failed[c][i]; ok {
			names = append(names, init.Name())
		}
	}
	return names
}

func (s *State) isFailed(c types.Category, idx int) bool {
	_, ok := s.failed[c][idx]
	return ok
}

func (s *State) markFailed(c types.Category, idx ...int) {
	if len(idx) == 0 {
		return
	}
	if s.failed[c] == nil {
		s.failed[c] = make(map[int]struct{}, len(idx))
	}
	for _, i := range idx {
		s.failed[c][i] = struct{}{}
	}
}

// append 追加新到达的字节
func (s *State) append(p []byte) {
	s.buf = append(s.buf, p...)
	s.bytesSeen += len(p)
}

// release 释放协商缓冲；失败集合保留用于诊断
func (s *State) release() {
	s.buf = nil
}
