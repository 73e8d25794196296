package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-apmrouter/internal/core/metrics"
	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/lib/log"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

var logger = log.Logger("core/transport/tcp")

// acceptBackoffMax 临时 accept 错误的最大退避
const acceptBackoffMax = time.Second

// ============================================================================
//                              Server 实现
// ============================================================================

// Server 单端口 TCP 服务
type Server struct {
	cfg      Config
	engine   *negotiation.Engine
	reporter metrics.Reporter
	limiter  *rate.Limiter
	sem      *semaphore.Weighted

	mu       sync.Mutex
	listener net.Listener
	conns    map[*Connection]struct{}
	cancel   context.CancelFunc
	closed   bool

	wg sync.WaitGroup
}

// Option 服务选项
type Option func(*Server)

// WithReporter 设置连接指标上报
func WithReporter(r metrics.Reporter) Option {
	return func(s *Server) {
		if r != nil {
			s.reporter = r
		}
	}
}

// NewServer 创建 TCP 服务
func NewServer(engine *negotiation.Engine, cfg Config, opts ...Option) (*Server, error) {
	if engine == nil {
		return nil, errors.New("tcp: nil engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		engine:   engine,
		reporter: metrics.NopReporter{},
		conns:    make(map[*Connection]struct{}),
	}
	if cfg.AcceptRate > 0 {
		burst := cfg.AcceptBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), burst)
	}
	if cfg.MaxConnections > 0 {
		s.sem = semaphore.NewWeighted(int64(cfg.MaxConnections))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start 在配置的地址上监听并在后台服务
func (s *Server) Start(ctx context.Context) error {
	l, err := Listen(ctx, s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	serveCtx, err := s.attach(l)
	if err != nil {
		_ = l.Close()
		return err
	}

	logger.Info("TCP 服务已启动", "addr", l.Addr().String())
	go func() {
		if err := s.acceptLoop(serveCtx, l); err != nil {
			logger.Error("accept 循环退出", "err", err)
		}
	}()
	return nil
}

// Serve 在给定监听器上服务，阻塞直到 ctx 取消或 Close
//
// 正常关闭时返回 nil。
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	serveCtx, err := s.attach(l)
	if err != nil {
		return err
	}
	go func() {
		<-serveCtx.Done()
		_ = l.Close()
	}()
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.Close()
			case <-serveCtx.Done():
			}
		}()
	}
	return s.acceptLoop(serveCtx, l)
}

// attach 记录监听器并创建服务 context
func (s *Server) attach(l net.Listener) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServerClosed
	}
	if s.listener != nil {
		return nil, ErrAlreadyServing
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.listener = l
	s.cancel = cancel
	return ctx, nil
}

// Addr 返回监听地址，未监听时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ActiveConns 返回当前连接数
func (s *Server) ActiveConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close 停止接受并关闭所有连接，等待连接 goroutine 退出
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true

	var err error
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		err = multierr.Append(err, ignoreClosed(s.listener.Close()))
	}
	for c := range s.conns {
		err = multierr.Append(err, ignoreClosed(c.Close()))
	}
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("TCP 服务已关闭")
	return err
}

// ============================================================================
//                              accept 循环
// ============================================================================

func (s *Server) acceptLoop(ctx context.Context, l net.Listener) error {
	var backoff time.Duration
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return s.stopErr(ctx, err)
			}
		}
		if s.sem != nil {
			if err := s.sem.Acquire(ctx, 1); err != nil {
				return s.stopErr(ctx, err)
			}
		}

		conn, err := l.Accept()
		if err != nil {
			s.release()
			if ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = nextBackoff(backoff)
				logger.Warn("accept 临时错误", "err", err, "backoff", backoff)
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return s.stopErr(ctx, err)
		}
		backoff = 0

		c := newConnection(conn, time.Now())
		if !s.track(c) {
			_ = c.Close()
			s.release()
			return nil
		}
		go s.handle(ctx, c)
	}
}

func (s *Server) stopErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

// track 登记连接；服务已关闭时返回 false
func (s *Server) track(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// ============================================================================
//                              连接处理
// ============================================================================

func (s *Server) handle(ctx context.Context, c *Connection) {
	defer s.wg.Done()
	defer s.release()
	defer s.untrack(c)

	s.reporter.ConnOpened()
	id := uuid.NewString()
	sess := s.engine.NewSession(ctx, id, c)

	err := s.serveConn(sess, c)
	_ = c.Close()

	var protocol string
	if sess.Phase() != types.PhaseError {
		protocol = strings.Join(sess.State().Winners(), "/")
	}
	if err != nil {
		logger.Debug("连接结束", "session", log.TruncateID(id, 8), "remote", c.RemoteAddr().String(),
			"phase", sess.Phase().String(), "err", err)
	}
	s.reporter.ConnClosed(protocol, c.BytesIn(), c.BytesOut(), time.Since(c.Opened()))
}

// serveConn 读取连接并送入引擎，直到会话结束
func (s *Server) serveConn(sess *negotiation.Session, c *Connection) error {
	buf := make([]byte, s.cfg.ReadBufferSize)
	for {
		s.applyDeadline(sess, c)

		n, rerr := c.Read(buf)
		if n > 0 {
			if err := s.engine.Feed(sess, buf[:n]); err != nil {
				if errors.Is(err, pkgif.ErrStageDone) {
					return s.engine.Close(sess)
				}
				s.engine.Abort(sess)
				return err
			}
		}

		if rerr != nil {
			switch {
			case errors.Is(rerr, io.EOF):
				return s.engine.Close(sess)
			case c.IsClosed():
				// 已安装的阶段或服务关闭主动断开
				s.engine.Abort(sess)
				return nil
			}
			negotiating := negotiating(sess.Phase())
			s.engine.Abort(sess)
			var ne net.Error
			if negotiating && errors.As(rerr, &ne) && ne.Timeout() {
				return ErrNegotiationTimeout
			}
			return rerr
		}

		if sess.Done() {
			return nil
		}
	}
}

// applyDeadline 协商期间使用协商超时，之后使用空闲超时
func (s *Server) applyDeadline(sess *negotiation.Session, c *Connection) {
	if negotiating(sess.Phase()) {
		if s.cfg.NegotiationTimeout > 0 {
			_ = c.SetReadDeadline(c.Opened().Add(s.cfg.NegotiationTimeout))
		}
		return
	}
	if s.cfg.IdleTimeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		return
	}
	_ = c.SetReadDeadline(time.Time{})
}

// negotiating 是否仍处于协商窗口（检测与解码阶段）
func negotiating(p types.Phase) bool {
	return p < types.PhaseContent
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > acceptBackoffMax {
		d = acceptBackoffMax
	}
	return d
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
