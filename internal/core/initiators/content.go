package initiators

import (
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// ============================================================================
//                              JSON
// ============================================================================

// JSON JSON 内容分类器
type JSON struct {
	base
	sink pkgif.MetricSink
}

var _ pkgif.Initiator = (*JSON)(nil)

// NewJSON 创建 JSON 内容分类器
func NewJSON(sink pkgif.MetricSink) *JSON {
	return &JSON{
		base: base{name: "json", category: types.CategoryContent, required: 1, full: true},
		sink: sinkOrNop(sink),
	}
}

// Match 第一个非空白字符为 { 或 [
func (*JSON) Match(b []byte) types.MatchResult {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return types.Matched(nil)
		default:
			return types.NoMatch()
		}
	}
	return types.Insufficient()
}

// Install 实现 Initiator
func (j *JSON) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.SetStage(newPayloadStage(ctx, j.sink, j.name, DecodeJSON))
	return types.PhaseContent, nil
}

// ============================================================================
//                              Protobuf
// ============================================================================

// protobufFirstByte Batch.points 字段的 tag（field 1, length-delimited）
const protobufFirstByte = 0x0a

// Protobuf protobuf 内容分类器
type Protobuf struct {
	base
	sink pkgif.MetricSink
}

var _ pkgif.Initiator = (*Protobuf)(nil)

// NewProtobuf 创建 protobuf 内容分类器
func NewProtobuf(sink pkgif.MetricSink) *Protobuf {
	return &Protobuf{
		base: base{name: "protobuf", category: types.CategoryContent, required: 1, full: true},
		sink: sinkOrNop(sink),
	}
}

// Match 实现 Initiator
func (*Protobuf) Match(b []byte) types.MatchResult {
	if b[0] == protobufFirstByte {
		return types.Matched(nil)
	}
	return types.NoMatch()
}

// Install 实现 Initiator
func (p *Protobuf) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.SetStage(newPayloadStage(ctx, p.sink, p.name, DecodeProtobuf))
	return types.PhaseContent, nil
}

// ============================================================================
//                              行协议
// ============================================================================

// Line 行协议内容分类器（流式）
type Line struct {
	base
	sink pkgif.MetricSink
}

var _ pkgif.Initiator = (*Line)(nil)

// NewLine 创建行协议内容分类器
func NewLine(sink pkgif.MetricSink) *Line {
	return &Line{
		base: base{name: "line", category: types.CategoryContent, required: 1},
		sink: sinkOrNop(sink),
	}
}

// Match 序列名之后紧跟空格与数值起始字符
//
// 不要求完整的一行，数据点较大时也能尽早确定。
func (*Line) Match(b []byte) types.MatchResult {
	if !isNameByte(b[0], true) {
		return types.NoMatch()
	}
	for i := 1; i < len(b); i++ {
		c := b[i]
		switch {
		case c == ' ':
			if i+1 == len(b) {
				return types.Insufficient()
			}
			if isValueStart(b[i+1]) {
				return types.Matched(nil)
			}
			return types.NoMatch()
		case isNameByte(c, false), c == ',', c == '=':
		default:
			return types.NoMatch()
		}
	}
	return types.Insufficient()
}

// Install 实现 Initiator
func (l *Line) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.SetStage(newLineStage(ctx.Context(), ctx.Writer(), l.sink, true))
	return types.PhaseContent, nil
}

func isValueStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func sinkOrNop(sink pkgif.MetricSink) pkgif.MetricSink {
	if sink == nil {
		return nopSink{}
	}
	return sink
}
