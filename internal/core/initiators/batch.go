package initiators

import (
	"bytes"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// 帧魔数
var (
	batchMagic  = []byte("APMB")
	ingestMagic = []byte("APM1")
)

// Batch 批量写入协议初始器
//
// APMB 之后直到连接关闭（或 END 行）的全部数据作为一批行协议数据点，
// 解析一次、路由一次。
type Batch struct {
	base
	sink pkgif.MetricSink
}

var (
	_ pkgif.Initiator         = (*Batch)(nil)
	_ pkgif.PayloadTerminator = (*Batch)(nil)
)

// NewBatch 创建批量写入初始器
func NewBatch(sink pkgif.MetricSink) *Batch {
	return &Batch{
		base: base{name: "batch", category: types.CategoryProtocol, required: prefixRequired, full: true},
		sink: sinkOrNop(sink),
	}
}

// Match 实现 Initiator
func (b *Batch) Match(p []byte) types.MatchResult {
	return matchPrefix(p, batchMagic)
}

// PayloadEnded 负载最后一行是 END 时提前交付
//
// 与 ParseLines 一致：行尾的 \r 与首尾空白不影响判断。
func (b *Batch) PayloadEnded(tail []byte) bool {
	body, ok := bytes.CutSuffix(tail, []byte{'\n'})
	if !ok {
		return false
	}
	start := bytes.LastIndexByte(body, '\n') + 1
	if start == 0 && len(tail) >= pkgif.PayloadTailSize {
		// 末尾被截断，看不到行首
		return false
	}
	return bytes.Equal(bytes.TrimSpace(body[start:]), batchTerminator)
}

// Install 实现 Initiator
func (b *Batch) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.Skip(len(batchMagic))
	ctx.SetStage(newPayloadStage(ctx, b.sink, b.name, func(p []byte) ([]types.MetricPoint, int, error) {
		points, rejected := ParseLines(p)
		return points, rejected, nil
	}))
	return types.PhaseComplete, nil
}

// Ingest 分层写入协议初始器
//
// APM1 之后依次检测传输编码与内容类型。
type Ingest struct {
	base
}

var _ pkgif.Initiator = (*Ingest)(nil)

// NewIngest 创建分层写入初始器
func NewIngest() *Ingest {
	return &Ingest{base: base{name: "ingest", category: types.CategoryProtocol, required: prefixRequired}}
}

// Match 实现 Initiator
func (i *Ingest) Match(p []byte) types.MatchResult {
	return matchPrefix(p, ingestMagic)
}

// Install 实现 Initiator
func (i *Ingest) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.Skip(len(ingestMagic))
	return types.PhaseEncodingDetect, nil
}
