package initiators

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// httpMethods HTTP/1.x 请求行前 4 字节
var httpMethods = [][]byte{
	[]byte("GET "), []byte("POST"), []byte("PUT "), []byte("HEAD"),
	[]byte("HTTP"), []byte("DELE"), []byte("OPTI"), []byte("PATC"),
}

// HTTP HTTP/1.x 协议初始器
//
// 匹配的连接通过内存管道交给共享的 http.Server。
type HTTP struct {
	base
	server *http.Server
	ln     *pipeListener

	startOnce sync.Once
	closeOnce sync.Once
	closed    chan struct{}
}

var _ pkgif.Initiator = (*HTTP)(nil)

// NewHTTP 创建 HTTP 初始器
func NewHTTP(handler http.Handler, readHeaderTimeout time.Duration) *HTTP {
	return &HTTP{
		base: base{name: "http", category: types.CategoryProtocol, required: prefixRequired},
		server: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		ln:     newPipeListener(),
		closed: make(chan struct{}),
	}
}

// Match 实现 Initiator
func (h *HTTP) Match(b []byte) types.MatchResult {
	return matchPrefix(b, httpMethods...)
}

// Install 实现 Initiator
func (h *HTTP) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	select {
	case <-h.closed:
		return types.PhaseError, ErrServerClosed
	default:
	}
	h.startOnce.Do(h.start)

	stage := startPipe(ctx, func(conn net.Conn) {
		if err := h.ln.push(conn); err != nil {
			_ = conn.Close()
		}
	})
	ctx.SetStage(stage)
	return types.PhaseComplete, nil
}

func (h *HTTP) start() {
	go func() {
		if err := h.server.Serve(h.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("HTTP 服务退出", "err", err)
		}
	}()
	logger.Debug("HTTP 服务已启动")
}

// Close 关闭 HTTP 服务
func (h *HTTP) Close(ctx context.Context) error {
	var err error
	h.closeOnce.Do(func() {
		close(h.closed)
		err = h.server.Shutdown(ctx)
		_ = h.ln.Close()
	})
	return err
}
