package negotiation

import (
	"context"
	"io"
	"net"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// Conn 会话所需的连接能力，net.Conn 满足该接口
type Conn interface {
	io.Writer
	io.Closer
	RemoteAddr() net.Addr
}

// pendingInstall Install 调用期间暂存的设置
type pendingInstall struct {
	stage   pkgif.Stage
	decoder pkgif.Decoder
	skip    int
}

// Session 单个连接的协商会话
//
// 由连接 goroutine 创建并独占，随连接一起传递，不存在全局登记表。
// Session 同时作为 Install 调用时的 InstallContext。
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	id     string
	conn   Conn
	state  *State

	// stage 已安装的下游阶段（Content/Complete）
	stage pkgif.Stage
	// inlet 解码入口，进入 Decompress 后所有原始字节经此流入
	inlet pkgif.Stage

	pending pendingInstall
	done    bool
}

var _ pkgif.InstallContext = (*Session)(nil)

// Context 连接生命周期 context
func (s *Session) Context() context.Context { return s.ctx }

// ID 连接标识
func (s *Session) ID() string { return s.id }

// RemoteAddr 远端地址
func (s *Session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Writer 向对端写数据
func (s *Session) Writer() io.Writer { return s.conn }

// Close 关闭底层连接
func (s *Session) Close() error { return s.conn.Close() }

// SetStage 设置下游阶段
func (s *Session) SetStage(stage pkgif.Stage) { s.pending.stage = stage }

// SetDecoder 设置解码器
func (s *Session) SetDecoder(dec pkgif.Decoder) { s.pending.decoder = dec }

// Skip 声明已消费的前导字节数
func (s *Session) Skip(n int) {
	if n > 0 {
		s.pending.skip += n
	}
}

// State 协商状态
func (s *Session) State() *State { return s.state }

// Phase 当前阶段
func (s *Session) Phase() types.Phase { return s.state.phase }

// Done 会话是否已结束
func (s *Session) Done() bool { return s.done }

// discardPending 丢弃安装失败时暂存的阶段
func (s *Session) discardPending() {
	if s.pending.stage != nil {
		abortStage(s.pending.stage)
	}
	s.pending = pendingInstall{}
}

// end 结束会话，释放全部协商资源
func (s *Session) end() {
	if s.done {
		return
	}
	s.done = true
	if s.inlet != nil {
		abortStage(s.inlet)
		s.inlet = nil
	}
	if s.stage != nil {
		abortStage(s.stage)
		s.stage = nil
	}
	s.state.release()
	s.cancel()
}

// abortStage 异常终止阶段，不支持 Abort 时退化为 Close
func abortStage(stage pkgif.Stage) {
	if ab, ok := stage.(pkgif.Aborter); ok {
		ab.Abort()
		return
	}
	_ = stage.Close()
}
