package initiators

import (
	"bytes"
	"context"
	"io"
	"net"
	"sort"
	"sync"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// syncBuffer 并发安全的输出缓冲
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeInstallContext 记录 Install 的设置
type fakeInstallContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	out     syncBuffer
	mu      sync.Mutex
	closed  bool
	stage   pkgif.Stage
	decoder pkgif.Decoder
	skip    int
}

func newFakeInstallContext() *fakeInstallContext {
	ctx, cancel := context.WithCancel(context.Background())
	return &fakeInstallContext{ctx: ctx, cancel: cancel}
}

func (f *fakeInstallContext) Context() context.Context   { return f.ctx }
func (f *fakeInstallContext) ID() string                 { return "test-session" }
func (f *fakeInstallContext) Writer() io.Writer          { return &f.out }
func (f *fakeInstallContext) SetStage(s pkgif.Stage)     { f.stage = s }
func (f *fakeInstallContext) SetDecoder(d pkgif.Decoder) { f.decoder = d }
func (f *fakeInstallContext) Skip(n int)                 { f.skip += n }

func (f *fakeInstallContext) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 5555}
}

func (f *fakeInstallContext) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeInstallContext) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// recordSink 记录路由的数据点
type recordSink struct {
	mu      sync.Mutex
	batches [][]types.MetricPoint
	err     error
}

func (s *recordSink) Route(_ context.Context, points []types.MetricPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]types.MetricPoint(nil), points...))
	return nil
}

func (s *recordSink) points() []types.MetricPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []types.MetricPoint
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func (s *recordSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// mapCatalog 简单目录
type mapCatalog map[string]types.MetricPoint

func (m mapCatalog) Last(name string) (types.MetricPoint, bool) {
	p, ok := m[name]
	return p, ok
}

func (m mapCatalog) Names() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// fixedStats 固定计数
type fixedStats map[string]int64

func (f fixedStats) Counts() map[string]int64 { return f }

// delimited multistream 长度前缀消息
func delimited(s string) []byte {
	return append([]byte{byte(len(s) + 1)}, []byte(s+"\n")...)
}
