package initiators

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
)

// ============================================================================
//                              内存管道
// ============================================================================

// pipeStage 把协商后的字节流接到一个 net.Conn 上
//
// 服务端 goroutine 拿到管道的一端，像普通连接一样读写；
// 它写出的数据被复制回真实连接，它关闭管道时真实连接随之关闭。
type pipeStage struct {
	client net.Conn
	once   sync.Once
}

// startPipe 创建管道并在新 goroutine 中运行 serve
func startPipe(ictx pkgif.InstallContext, serve func(conn net.Conn)) *pipeStage {
	server, client := net.Pipe()
	sc := &remoteConn{Conn: server, remote: ictx.RemoteAddr(), ctx: ictx.Context()}
	ps := &pipeStage{client: client}

	out := ictx.Writer()
	go func() {
		_, _ = io.Copy(out, client)
		_ = ictx.Close()
	}()
	go func() {
		<-ictx.Context().Done()
		_ = ps.Close()
	}()
	go serve(sc)

	return ps
}

func (p *pipeStage) Write(b []byte) error {
	if _, err := p.client.Write(b); err != nil {
		if errors.Is(err, io.ErrClosedPipe) {
			return pkgif.ErrStageDone
		}
		return err
	}
	return nil
}

func (p *pipeStage) Close() error {
	p.once.Do(func() {
		_ = p.client.Close()
	})
	return nil
}

// remoteConn 对服务端暴露真实的远端地址与连接 context
type remoteConn struct {
	net.Conn
	remote net.Addr
	ctx    context.Context
}

// contextOf 返回管道连接所属会话的 context
func contextOf(v any) context.Context {
	if rc, ok := v.(*remoteConn); ok && rc.ctx != nil {
		return rc.ctx
	}
	return context.Background()
}

func (c *remoteConn) RemoteAddr() net.Addr {
	if c.remote != nil {
		return c.remote
	}
	return c.Conn.RemoteAddr()
}

// pipeListener 把管道连接交给 http.Server 的 net.Listener
type pipeListener struct {
	conns chan net.Conn
	done  chan struct{}
	once  sync.Once
}

func newPipeListener() *pipeListener {
	return &pipeListener{
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
}

// Accept 实现 net.Listener
func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close 实现 net.Listener
func (l *pipeListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

// Addr 实现 net.Listener
func (l *pipeListener) Addr() net.Addr { return pipeAddr{} }

// push 投递一个连接，监听器关闭后返回 net.ErrClosed
func (l *pipeListener) push(c net.Conn) error {
	select {
	case l.conns <- c:
		return nil
	case <-l.done:
		return net.ErrClosed
	}
}

type pipeAddr struct{}

func (pipeAddr) Network() string { return "pipe" }
func (pipeAddr) String() string  { return "apmrouter" }
