package tcp

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dep2p/go-apmrouter/internal/core/negotiation"
)

// 确保实现了接口
var _ negotiation.Conn = (*Connection)(nil)

// Connection 被接受的 TCP 连接
//
// 统计双向字节数；Close 可由连接 goroutine 与已安装的阶段并发调用。
type Connection struct {
	conn   net.Conn
	opened time.Time

	in  atomic.Int64
	out atomic.Int64

	mu     sync.Mutex
	closed bool
}

// newConnection 创建新连接
func newConnection(conn net.Conn, opened time.Time) *Connection {
	return &Connection{
		conn:   conn,
		opened: opened,
	}
}

// Read 读取数据
func (c *Connection) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	c.in.Add(int64(n))
	return n, err
}

// Write 写入数据
func (c *Connection) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	c.out.Add(int64(n))
	return n, err
}

// RemoteAddr 返回远端地址
func (c *Connection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetReadDeadline 设置读截止时间
func (c *Connection) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// BytesIn 已读取字节数
func (c *Connection) BytesIn() int64 { return c.in.Load() }

// BytesOut 已写出字节数
func (c *Connection) BytesOut() int64 { return c.out.Load() }

// Opened 返回接受时间
func (c *Connection) Opened() time.Time { return c.opened }

// Close 关闭连接
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// IsClosed 检查是否已关闭
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}
