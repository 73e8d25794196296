package tcp

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-apmrouter/internal/core/initiators"
	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
	"github.com/dep2p/go-apmrouter/internal/core/router"
)

// closedConn 一次连接结束的上报
type closedConn struct {
	protocol string
	in, out  int64
}

// recordReporter 记录连接上报
type recordReporter struct {
	mu     sync.Mutex
	opened int
	closed []closedConn
}

func (r *recordReporter) ConnOpened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened++
}

func (r *recordReporter) ConnClosed(protocol string, in, out int64, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, closedConn{protocol: protocol, in: in, out: out})
}

func (r *recordReporter) snapshot() (int, []closedConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, append([]closedConn(nil), r.closed...)
}

// newTestEngine 使用默认的全部内置初始器与真实路由器
func newTestEngine(t *testing.T, budget int) (*negotiation.Engine, *router.Router) {
	t.Helper()

	r, err := router.New(router.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	set, err := initiators.Builtins(initiators.DefaultConfig(), initiators.Deps{Sink: r, Catalog: r, Stats: r})
	require.NoError(t, err)
	t.Cleanup(func() { _ = set.Close(context.Background()) })

	reg := negotiation.NewRegistry()
	require.NoError(t, reg.Register(set.Initiators()...))

	ncfg := negotiation.DefaultConfig()
	ncfg.MaxInitiatorBytes = budget
	e, err := negotiation.NewEngine(reg, ncfg)
	require.NoError(t, err)
	return e, r
}

// startServer 在随机端口启动服务
func startServer(t *testing.T, e *negotiation.Engine, mutate func(*Config), opts ...Option) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := NewServer(e, cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func dial(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", srv.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	return c
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return line
}
