package initiators

import (
	"io"
	"net"

	mss "github.com/multiformats/go-multistream"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// 通过 multistream-select 提供的子协议
const (
	// ProtocolCommand 命令协议
	ProtocolCommand = "/apm/cmd/1.0.0"
	// ProtocolIngest 行协议数据写入
	ProtocolIngest = "/apm/ingest/1.0.0"
)

// multistreamHeader 长度前缀 + "/multistream/1.0.0\n"
var multistreamHeader = append([]byte{byte(len(mss.ProtocolID) + 1)}, []byte(mss.ProtocolID+"\n")...)

// Multistream multistream-select 协议初始器
type Multistream struct {
	base
	mux *mss.MultistreamMuxer[string]
}

var _ pkgif.Initiator = (*Multistream)(nil)

// NewMultistream 创建 multistream 初始器
func NewMultistream(sink pkgif.MetricSink, catalog pkgif.MetricCatalog, stats StatsSource) *Multistream {
	sink = sinkOrNop(sink)
	cmds := &commands{catalog: catalog, stats: stats}

	mux := mss.NewMultistreamMuxer[string]()
	mux.AddHandler(ProtocolCommand, func(_ string, rwc io.ReadWriteCloser) error {
		return cmds.serve(rwc)
	})
	mux.AddHandler(ProtocolIngest, func(_ string, rwc io.ReadWriteCloser) error {
		return serveIngest(rwc, sink)
	})

	return &Multistream{
		base: base{name: "multistream", category: types.CategoryProtocol, required: prefixRequired},
		mux:  mux,
	}
}

// Match 实现 Initiator
func (m *Multistream) Match(b []byte) types.MatchResult {
	return matchPrefix(b, multistreamHeader)
}

// Protocols 已注册的子协议
func (m *Multistream) Protocols() []string {
	return m.mux.Protocols()
}

// Install 实现 Initiator
func (m *Multistream) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	id := ctx.ID()
	stage := startPipe(ctx, func(conn net.Conn) {
		defer conn.Close()
		proto, handler, err := m.mux.Negotiate(conn)
		if err != nil {
			logger.Debug("multistream 协商失败", "session", id, "err", err)
			return
		}
		if handler == nil {
			return
		}
		if err := handler(proto, conn); err != nil {
			logger.Debug("multistream 子协议结束", "session", id, "protocol", proto, "err", err)
		}
	})
	ctx.SetStage(stage)
	return types.PhaseComplete, nil
}

// serveIngest 持续读取行协议并路由
func serveIngest(rwc io.ReadWriteCloser, sink pkgif.MetricSink) error {
	stage := newLineStage(contextOf(rwc), rwc, sink, false)
	buf := make([]byte, 4096)
	for {
		n, err := rwc.Read(buf)
		if n > 0 {
			if werr := stage.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return stage.Close()
		}
		if err != nil {
			return err
		}
	}
}
