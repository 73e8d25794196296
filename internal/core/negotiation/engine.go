package negotiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"

	"github.com/dep2p/go-apmrouter/internal/core/aggregator"
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/lib/log"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

var logger = log.Logger("core/negotiation")

// Engine 端口复用协商引擎
//
// Engine 本身无状态，可被所有连接共享；每个连接的状态保存在 Session 中，
// 同一 Session 上的 Feed/Close/Abort 必须由同一 goroutine 串行调用。
type Engine struct {
	registry *Registry
	cfg      Config
	counters *aggregator.Counters
	observer Observer
	clock    clock.Clock
}

// Option 引擎选项
type Option func(*Engine)

// WithObserver 设置观察者
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock 设置时钟（测试使用 clock.NewMock）
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithCounters 设置共享的聚合计数器
func WithCounters(c *aggregator.Counters) Option {
	return func(e *Engine) {
		if c != nil {
			e.counters = c
		}
	}
}

// NewEngine 创建协商引擎
func NewEngine(registry *Registry, cfg Config, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, errors.New("negotiation: nil registry")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		registry: registry,
		cfg:      cfg,
		counters: aggregator.NewCounters(),
		observer: NopObserver{},
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry 返回注册表
func (e *Engine) Registry() *Registry { return e.registry }

// Config 返回引擎配置
func (e *Engine) Config() Config { return e.cfg }

// Counters 返回聚合计数器
func (e *Engine) Counters() *aggregator.Counters { return e.counters }

// NewSession 为新连接创建会话，状态为 Init
//
// 会话固定创建时刻的注册表快照。
func (e *Engine) NewSession(ctx context.Context, id string, conn Conn) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		ctx:    ctx,
		cancel: cancel,
		id:     id,
		conn:   conn,
		state:  newState(e.registry.current(), e.cfg.MaxInitiatorBytes, e.clock.Now()),
	}
	return s
}

// ============================================================================
//                              数据流入口
// ============================================================================

// Feed 送入连接上新到达的字节
//
// 返回 ErrNegotiationExhausted 时连接应被关闭。下游阶段返回的错误原样传出，
// 其中 pkgif.ErrStageDone 表示对端协议已正常结束。
func (e *Engine) Feed(s *Session, p []byte) error {
	if s.done {
		return ErrSessionClosed
	}
	if len(p) == 0 {
		return nil
	}
	if s.inlet != nil {
		return s.inlet.Write(p)
	}
	return e.dispatch(s, p)
}

// Close 对端关闭连接（数据流正常结束）
//
// 检测阶段以 final 方式运行最后一轮；已安装的聚合按初始器声明交付或丢弃；
// 内容阶段关闭后进入 Complete。重复调用无副作用。
func (e *Engine) Close(s *Session) error {
	if s.done {
		return nil
	}
	var err error
	if s.inlet != nil {
		inlet := s.inlet
		s.inlet = nil
		err = inlet.Close()
	} else {
		err = e.finish(s)
	}
	s.end()
	return ignoreStageDone(err)
}

// Abort 连接异常终止，丢弃所有未完成的聚合
func (e *Engine) Abort(s *Session) {
	if s.done {
		return
	}
	if s.inlet != nil {
		abortStage(s.inlet)
		s.inlet = nil
	}
	if s.stage != nil {
		abortStage(s.stage)
		s.stage = nil
	}
	if st := s.state; st.phase < types.PhaseContent {
		_ = e.fail(s, "connection aborted")
	}
	s.end()
}

// dispatch 按当前阶段分发字节
func (e *Engine) dispatch(s *Session, p []byte) error {
	st := s.state
	switch st.phase {
	case types.PhaseDecompress:
		// 首批解码输出到达
		st.phase = types.PhaseContentDetect
		fallthrough
	case types.PhaseInit, types.PhaseEncodingDetect, types.PhaseContentDetect:
		st.append(p)
		return e.advance(s, false)
	case types.PhaseContent, types.PhaseComplete:
		if s.stage == nil {
			return ErrSessionClosed
		}
		return s.stage.Write(p)
	default:
		return ErrNegotiationExhausted
	}
}

// ============================================================================
//                              协商推进
// ============================================================================

// advance 在检测阶段反复运行协商轮，直到需要更多数据或离开检测阶段
func (e *Engine) advance(s *Session, final bool) error {
	for {
		st := s.state
		cat, ok := st.phase.Category()
		if !ok {
			return nil
		}

		d := Decide(st, final)
		st.markFailed(cat, d.Failed...)
		list := st.snap.list(cat)
		for _, idx := range d.Failed {
			e.observer.InitiatorFailed(list[idx].Name(), st.phase, false)
		}

		switch d.Verdict {
		case VerdictNeedMoreData:
			return nil
		case VerdictExhausted:
			return e.fail(s, d.Reason)
		case VerdictSkip:
			st.phase = nextDetectPhase(cat)
			continue
		}

		init := list[d.Index]
		next, err := e.install(s, init, d.Key)
		if err != nil {
			st.markFailed(cat, d.Index)
			e.observer.InitiatorFailed(init.Name(), st.phase, true)
			logger.Warn("初始器安装失败",
				"session", log.TruncateID(s.id, 8),
				"initiator", init.Name(),
				"phase", st.phase.String(),
				"err", err)
			continue
		}
		if err := e.commit(s, init, next); err != nil {
			return err
		}
	}
}

// install 调用初始器的 Install，并校验其声明的下一阶段
func (e *Engine) install(s *Session, init pkgif.Initiator, key any) (next types.Phase, err error) {
	s.pending = pendingInstall{}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", ErrInstallFailed, init.Name(), r)
		}
		if err != nil {
			s.discardPending()
		}
	}()

	next, err = init.Install(s, key)
	if err != nil {
		return next, fmt.Errorf("%w: %s: %w", ErrInstallFailed, init.Name(), err)
	}
	if verr := validateTransition(s.state.phase, next, &s.pending); verr != nil {
		return next, fmt.Errorf("%w: %s: %w", ErrInstallFailed, init.Name(), verr)
	}
	return next, nil
}

// validateTransition 阶段只能前进，且必须具备进入该阶段的条件
func validateTransition(cur, next types.Phase, p *pendingInstall) error {
	if next <= cur || next == types.PhaseError || next == types.PhaseInit {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	switch next {
	case types.PhaseDecompress:
		if p.decoder == nil {
			return ErrNoDecoder
		}
	case types.PhaseContent, types.PhaseComplete:
		if p.stage == nil {
			return ErrNoStage
		}
	}
	return nil
}

// commit 应用安装结果，并把跳过魔数后剩余的字节交给下一阶段
func (e *Engine) commit(s *Session, init pkgif.Initiator, next types.Phase) error {
	st := s.state
	p := s.pending
	s.pending = pendingInstall{}

	skip := p.skip
	if skip > len(st.buf) {
		skip = len(st.buf)
	}
	rest := st.buf[skip:]
	from := st.phase

	st.buf = nil
	st.phase = next
	st.winners = append(st.winners, init.Name())
	e.observer.InitiatorMatched(init.Name(), from)
	logger.Debug("初始器胜出",
		"session", log.TruncateID(s.id, 8),
		"initiator", init.Name(),
		"from", from.String(),
		"to", next.String(),
		"skip", skip)

	switch next {
	case types.PhaseEncodingDetect, types.PhaseContentDetect:
		if len(rest) > 0 {
			st.buf = rest
		}
		return nil

	case types.PhaseDecompress:
		var inlet pkgif.Stage = &decodeStage{engine: e, session: s, decoder: p.decoder}
		if init.RequiresFullPayload() {
			inlet = e.aggregate(init, inlet)
		}
		s.inlet = inlet
		if len(rest) > 0 {
			return inlet.Write(rest)
		}
		return nil

	default:
		stage := p.stage
		if init.RequiresFullPayload() {
			stage = e.aggregate(init, stage)
		}
		s.stage = stage
		e.complete(s)
		if len(rest) > 0 {
			return stage.Write(rest)
		}
		return nil
	}
}

func (e *Engine) aggregate(init pkgif.Initiator, next pkgif.Stage) pkgif.Stage {
	return aggregator.New(next, aggregator.OptionsFor(init, e.counters, e.cfg.MaxPayloadBytes))
}

// complete 下游阶段已安装，协商结束
func (e *Engine) complete(s *Session) {
	st := s.state
	elapsed := e.clock.Since(st.started)
	e.observer.NegotiationCompleted(st.bytesSeen, elapsed)
	logger.Debug("协商完成",
		"session", log.TruncateID(s.id, 8),
		"winners", st.winners,
		"bytes", st.bytesSeen,
		"elapsed", elapsed)
	st.release()
}

// fail 进入 Error 阶段（只进入一次）
func (e *Engine) fail(s *Session, reason string) error {
	st := s.state
	if st.phase == types.PhaseError {
		return ErrNegotiationExhausted
	}
	from := st.phase
	var failed []string
	if cat, ok := from.Category(); ok {
		failed = st.Failed(cat)
	}
	st.phase = types.PhaseError
	elapsed := e.clock.Since(st.started)
	e.observer.NegotiationFailed(from, st.bytesSeen, elapsed)
	logger.Warn("协商失败",
		"session", log.TruncateID(s.id, 8),
		"remote", remoteString(s),
		"phase", from.String(),
		"bytes", st.bytesSeen,
		"reason", reason,
		"failed", failed)
	st.release()
	return fmt.Errorf("%w: %s in %s after %d bytes", ErrNegotiationExhausted, reason, from, st.bytesSeen)
}

// finish 数据流结束：运行最后一轮并关闭下游阶段
func (e *Engine) finish(s *Session) error {
	st := s.state
	if st.phase == types.PhaseDecompress {
		// 解码器没有任何输出
		st.phase = types.PhaseContentDetect
	}

	var err error
	if st.phase.IsDetect() {
		err = e.advance(s, true)
	}

	switch st.phase {
	case types.PhaseDecompress:
		// 最后一轮安装了解码器，关闭入口以交付
		if s.inlet != nil {
			inlet := s.inlet
			s.inlet = nil
			err = multierr.Append(err, inlet.Close())
		}
	case types.PhaseContent, types.PhaseComplete:
		if s.stage != nil {
			stage := s.stage
			s.stage = nil
			err = multierr.Append(err, ignoreStageDone(stage.Close()))
		}
		st.phase = types.PhaseComplete
	}
	return err
}

// ============================================================================
//                              解码入口
// ============================================================================

// decodeStage 把原始字节解码后重新送入协商
type decodeStage struct {
	engine  *Engine
	session *Session
	decoder pkgif.Decoder
}

func (d *decodeStage) Write(p []byte) error {
	out, err := d.decoder.Decode(p)
	if err != nil {
		derr := fmt.Errorf("%w: %w", ErrDecodeFailed, err)
		if !d.session.state.phase.IsTerminal() {
			return multierr.Append(derr, d.engine.fail(d.session, derr.Error()))
		}
		return derr
	}
	if len(out) == 0 {
		return nil
	}
	return d.engine.dispatch(d.session, out)
}

func (d *decodeStage) Close() error {
	return d.engine.finish(d.session)
}

func (d *decodeStage) Abort() {
	if st := d.session.state; st.phase < types.PhaseContent {
		_ = d.engine.fail(d.session, "payload discarded")
	}
}

// nextDetectPhase 跳过空类别后的检测阶段
func nextDetectPhase(c types.Category) types.Phase {
	if c == types.CategoryProtocol {
		return types.PhaseEncodingDetect
	}
	return types.PhaseContentDetect
}

func ignoreStageDone(err error) error {
	if errors.Is(err, pkgif.ErrStageDone) {
		return nil
	}
	return err
}

func remoteString(s *Session) string {
	if s.conn == nil || s.conn.RemoteAddr() == nil {
		return ""
	}
	return s.conn.RemoteAddr().String()
}
