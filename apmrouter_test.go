package apmrouter

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-apmrouter/config"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

func startRouter(t *testing.T, opts ...Option) *Router {
	t.Helper()
	opts = append([]Option{WithListenAddr("127.0.0.1:0")}, opts...)
	r, err := New(opts...)
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func dialRouter(t *testing.T, r *Router) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", r.Addr().String(), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	_ = c.SetDeadline(time.Now().Add(5 * time.Second))
	return c
}

func httpClient() *http.Client {
	return &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(WithMaxInitiatorBytes(0))
	assert.Error(t, err)

	_, err = New(WithListenAddr(""))
	assert.Error(t, err)

	_, err = New(WithConfig(nil))
	assert.Error(t, err)

	_, err = New(WithInitiators(nil))
	assert.Error(t, err)

	_, err = New(WithPreset("mobile"))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg := config.NewConfig()
	cfg.Catalog.Size = 0
	_, err = New(WithConfig(cfg))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRouter_Lifecycle(t *testing.T) {
	r, err := New(WithListenAddr("127.0.0.1:0"))
	require.NoError(t, err)
	assert.Nil(t, r.Addr())

	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), ErrAlreadyStarted)
	require.NotNil(t, r.Addr())

	assert.Equal(t, []string{
		"http", "multistream", "command", "batch", "ingest",
		"gzip", "zstd", "snappy", "identity",
		"json", "protobuf", "line",
	}, r.Initiators())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Start(context.Background()), ErrClosed)
}

func TestRouter_MinimalPreset(t *testing.T) {
	r, err := New(WithPreset(config.PresetMinimal), WithListenAddr("127.0.0.1:0"))
	require.NoError(t, err)
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()

	assert.Equal(t, []string{
		"batch", "ingest",
		"gzip", "zstd", "snappy", "identity",
		"json", "protobuf", "line",
	}, r.Initiators())
	assert.Nil(t, r.Metrics())
}

func TestRouter_OnePortManyProtocols(t *testing.T) {
	r := startRouter(t, WithMaxInitiatorBytes(64))
	sub, err := r.Subscribe(16)
	require.NoError(t, err)

	// 流式上报：APM1 + identity + JSON
	c := dialRouter(t, r)
	_, err = c.Write([]byte(`APM1[{"name":"cpu","value":0.5,"timestamp":1000}]`))
	require.NoError(t, err)
	require.NoError(t, c.(*net.TCPConn).CloseWrite())

	select {
	case batch := <-sub.C():
		require.Len(t, batch, 1)
		assert.Equal(t, "cpu", batch[0].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("no batch routed")
	}

	// 命令协议读取目录
	cmd := dialRouter(t, r)
	br := bufio.NewReader(cmd)
	_, err = cmd.Write([]byte("LAST cpu\n"))
	require.NoError(t, err)
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "cpu 0.5 1000\n", line)

	// 同一端口上的 HTTP
	resp, err := httpClient().Get("http://" + r.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	resp, err = httpClient().Get("http://" + r.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `apmrouter_negotiation_initiator_matched_total{initiator="ingest",phase="init"} 1`)
	assert.Contains(t, string(body), "apmrouter_router_received_total 1")

	assert.Equal(t, int64(1), r.Stats()["received"])
	_, ok := r.Catalog().Last("cpu")
	assert.True(t, ok)
}

func TestRouter_MetricsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Metrics.Enabled = false
	r := startRouter(t, WithConfig(cfg))
	assert.Nil(t, r.Metrics())

	resp, err := httpClient().Get("http://" + r.Addr().String() + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// echoInitiator 自定义协议：以 "ECHO" 开头的连接原样回显
type echoInitiator struct{}

func (echoInitiator) Name() string             { return "echo" }
func (echoInitiator) Category() types.Category { return types.CategoryProtocol }
func (echoInitiator) RequiredBytes() int       { return 4 }
func (echoInitiator) RequiresFullPayload() bool {
	return false
}

func (echoInitiator) Match(b []byte) types.MatchResult {
	if len(b) < 4 {
		return types.Insufficient()
	}
	if strings.HasPrefix(string(b), "ECHO") {
		return types.Matched(nil)
	}
	return types.NoMatch()
}

func (echoInitiator) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.SetStage(echoStage{w: ctx.Writer()})
	return types.PhaseComplete, nil
}

type echoStage struct{ w io.Writer }

func (s echoStage) Write(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

func (echoStage) Close() error { return nil }

func TestRouter_CustomInitiatorFirst(t *testing.T) {
	r := startRouter(t, WithInitiators(echoInitiator{}))
	assert.Equal(t, "echo", r.Initiators()[0])

	c := dialRouter(t, r)
	_, err := c.Write([]byte("ECHO hi\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(c).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ECHO hi\n", line)
}
