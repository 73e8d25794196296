package negotiation

import (
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// ============================================================================
//                              测试初始器
// ============================================================================

// fakeInitiator 可配置的测试初始器
type fakeInitiator struct {
	name     string
	cat      types.Category
	required int
	full     bool
	match    func(b []byte) types.MatchResult
	install  func(ctx pkgif.InstallContext, key any) (types.Phase, error)

	mu       sync.Mutex
	installs int
}

func (f *fakeInitiator) Name() string              { return f.name }
func (f *fakeInitiator) Category() types.Category  { return f.cat }
func (f *fakeInitiator) RequiredBytes() int        { return f.required }
func (f *fakeInitiator) RequiresFullPayload() bool { return f.full }

func (f *fakeInitiator) Match(b []byte) types.MatchResult {
	if f.match == nil {
		return types.NoMatch()
	}
	return f.match(b)
}

func (f *fakeInitiator) Install(ctx pkgif.InstallContext, key any) (types.Phase, error) {
	f.mu.Lock()
	f.installs++
	f.mu.Unlock()
	return f.install(ctx, key)
}

func (f *fakeInitiator) Installs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs
}

// prefixes 前缀匹配器
func prefixes(ps ...string) func([]byte) types.MatchResult {
	return func(b []byte) types.MatchResult {
		for _, p := range ps {
			if bytes.HasPrefix(b, []byte(p)) {
				return types.Matched(p)
			}
		}
		return types.NoMatch()
	}
}

func always(b []byte) types.MatchResult { return types.Matched(nil) }

// installStage 安装 stage 并进入 next
func installStage(stage pkgif.Stage, skip int, next types.Phase) func(pkgif.InstallContext, any) (types.Phase, error) {
	return func(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
		ctx.Skip(skip)
		ctx.SetStage(stage)
		return next, nil
	}
}

// installDecoder 安装解码器并进入 Decompress
func installDecoder(dec pkgif.Decoder, skip int) func(pkgif.InstallContext, any) (types.Phase, error) {
	return func(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
		ctx.Skip(skip)
		ctx.SetDecoder(dec)
		return types.PhaseDecompress, nil
	}
}

// advanceTo 只跳过魔数并进入下一检测阶段
func advanceTo(next types.Phase, skip int) func(pkgif.InstallContext, any) (types.Phase, error) {
	return func(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
		ctx.Skip(skip)
		return next, nil
	}
}

var upper = pkgif.DecoderFunc(func(p []byte) ([]byte, error) {
	return []byte(strings.ToUpper(string(p))), nil
})

// ============================================================================
//                              测试阶段与连接
// ============================================================================

// recordStage 记录收到的数据
type recordStage struct {
	mu      sync.Mutex
	writes  [][]byte
	closed  int
	aborted int
}

func (r *recordStage) Write(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, append([]byte(nil), p...))
	return nil
}

func (r *recordStage) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	return nil
}

func (r *recordStage) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted++
}

func (r *recordStage) joined() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(bytes.Join(r.writes, nil))
}

// fakeConn 内存连接
type fakeConn struct {
	bytes.Buffer
	closed bool
}

func (c *fakeConn) Close() error         { c.closed = true; return nil }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000} }

// recordObserver 记录观察回调
type recordObserver struct {
	mu        sync.Mutex
	matched   []string
	noMatch   []string
	installs  []string
	completed []time.Duration
	failed    []types.Phase
}

func (o *recordObserver) InitiatorMatched(name string, _ types.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.matched = append(o.matched, name)
}

func (o *recordObserver) InitiatorFailed(name string, _ types.Phase, installErr bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if installErr {
		o.installs = append(o.installs, name)
	} else {
		o.noMatch = append(o.noMatch, name)
	}
}

func (o *recordObserver) NegotiationCompleted(_ int, elapsed time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, elapsed)
}

func (o *recordObserver) NegotiationFailed(phase types.Phase, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed = append(o.failed, phase)
}

// newTestEngine 创建带注册表的引擎
func newTestEngine(t *testing.T, budget int, inits ...pkgif.Initiator) (*Engine, *recordObserver) {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(inits...))
	obs := &recordObserver{}
	e, err := NewEngine(reg, DefaultConfig().WithMaxInitiatorBytes(budget), WithObserver(obs))
	require.NoError(t, err)
	return e, obs
}

// newTestState 创建处于指定阶段的状态
func newTestState(t *testing.T, phase types.Phase, budget int, inits ...pkgif.Initiator) *State {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register(inits...))
	st := newState(reg.current(), budget, time.Now())
	st.phase = phase
	return st
}
