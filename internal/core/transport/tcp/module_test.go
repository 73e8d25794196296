package tcp

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-apmrouter/config"
)

func TestModule_Lifecycle(t *testing.T) {
	e, _ := newTestEngine(t, 64)
	cfg := config.NewConfig()
	cfg.Listen.Addr = "127.0.0.1:0"

	var srv *Server
	app := fxtest.New(t,
		fx.Supply(cfg, e),
		Module(),
		fx.Populate(&srv),
	)
	app.RequireStart()

	require.NotNil(t, srv.Addr())
	c, err := net.DialTimeout("tcp", srv.Addr().String(), time.Second)
	require.NoError(t, err)
	defer c.Close()
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))

	_, err = c.Write([]byte("PING\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "PONG\n", line)

	app.RequireStop()
	assert.Equal(t, 0, srv.ActiveConns())
}

func TestConfigFromUnified(t *testing.T) {
	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))

	cfg := config.NewConfig()
	cfg.Listen.Addr = ":9999"
	cfg.Negotiation.Timeout = config.Duration(time.Second)

	got := ConfigFromUnified(cfg)
	assert.Equal(t, ":9999", got.ListenAddr)
	assert.Equal(t, time.Second, got.NegotiationTimeout)
	assert.Equal(t, cfg.Listen.ReadBufferSize, got.ReadBufferSize)
}
