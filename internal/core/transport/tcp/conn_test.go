package tcp

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_CountsBytes(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	c := newConnection(server, time.Unix(100, 0))
	assert.Equal(t, time.Unix(100, 0), c.Opened())

	go func() {
		_, _ = client.Write([]byte("hello"))
		buf := make([]byte, 3)
		_, _ = client.Read(buf)
	}()

	buf := make([]byte, 16)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = c.Write([]byte("abc"))
	require.NoError(t, err)

	assert.Equal(t, int64(5), c.BytesIn())
	assert.Equal(t, int64(3), c.BytesOut())
}

func TestConnection_CloseIdempotent(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	c := newConnection(server, time.Now())
	assert.False(t, c.IsClosed())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.True(t, c.IsClosed())
}

func TestListener_Options(t *testing.T) {
	l, err := Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		c, err := net.Dial("tcp", l.Addr().String())
		if err == nil {
			_ = c.Close()
		}
	}()

	c, err := l.Accept()
	require.NoError(t, err)
	_, ok := c.(*net.TCPConn)
	assert.True(t, ok)
	_ = c.Close()

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.True(t, l.IsClosed())
}
