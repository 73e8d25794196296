package initiators

import (
	"context"
	"io"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// decodeFunc 完整负载解析函数
type decodeFunc func(p []byte) ([]types.MetricPoint, int, error)

// payloadStage 接收完整负载，解析后一次性路由
type payloadStage struct {
	ctx    context.Context
	w      io.Writer
	sink   pkgif.MetricSink
	decode decodeFunc
	kind   string
}

func newPayloadStage(ictx pkgif.InstallContext, sink pkgif.MetricSink, kind string, decode decodeFunc) *payloadStage {
	return &payloadStage{
		ctx:    ictx.Context(),
		w:      ictx.Writer(),
		sink:   sink,
		decode: decode,
		kind:   kind,
	}
}

func (s *payloadStage) Write(p []byte) error {
	points, rejected, err := s.decode(p)
	if err != nil {
		_, _ = s.w.Write(errLine(err))
		return err
	}
	if len(points) > 0 {
		if err := s.sink.Route(s.ctx, points); err != nil {
			_, _ = s.w.Write(errLine(err))
			return err
		}
	}
	logger.Debug("负载已路由", "kind", s.kind, "accepted", len(points), "rejected", rejected, "bytes", len(p))
	_, _ = s.w.Write(ackLine(len(points), rejected))
	return nil
}

func (s *payloadStage) Close() error { return nil }

// lineStage 流式行协议
//
// 每次 Write 解析其中的完整行并立即路由，关闭时处理末尾残余并回执。
type lineStage struct {
	ctx      context.Context
	w        io.Writer
	sink     pkgif.MetricSink
	lines    lineBuffer
	batch    []types.MetricPoint
	accepted int
	rejected int
	ack      bool
}

func newLineStage(ctx context.Context, w io.Writer, sink pkgif.MetricSink, ack bool) *lineStage {
	return &lineStage{ctx: ctx, w: w, sink: sink, ack: ack}
}

func (s *lineStage) Write(p []byte) error {
	if err := s.lines.feed(p, s.parse); err != nil {
		return err
	}
	return s.route()
}

func (s *lineStage) Close() error {
	if err := s.lines.flush(s.parse); err != nil {
		return err
	}
	if err := s.route(); err != nil {
		return err
	}
	if s.ack {
		_, _ = s.w.Write(ackLine(s.accepted, s.rejected))
	}
	return nil
}

func (s *lineStage) parse(line []byte) error {
	if skipLine(line) {
		return nil
	}
	p, err := ParseLine(line)
	if err != nil {
		s.rejected++
		logger.Debug("行协议解析失败", "err", err)
		return nil
	}
	s.batch = append(s.batch, p)
	return nil
}

func (s *lineStage) route() error {
	if len(s.batch) == 0 {
		return nil
	}
	batch := s.batch
	s.batch = nil
	if err := s.sink.Route(s.ctx, batch); err != nil {
		return err
	}
	s.accepted += len(batch)
	return nil
}
