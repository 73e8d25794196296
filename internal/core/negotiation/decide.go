package negotiation

import (
	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// Verdict 单轮协商结论
type Verdict int

const (
	// VerdictNeedMoreData 等待更多字节
	VerdictNeedMoreData Verdict = iota
	// VerdictMatched 有初始器匹配
	VerdictMatched
	// VerdictExhausted 协商失败
	VerdictExhausted
	// VerdictSkip 该类别没有注册任何初始器，字节原样进入下一检测阶段
	VerdictSkip
)

// String 返回结论的字符串表示
func (v Verdict) String() string {
	switch v {
	case VerdictNeedMoreData:
		return "need-more-data"
	case VerdictMatched:
		return "matched"
	case VerdictExhausted:
		return "exhausted"
	case VerdictSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Decision 单轮协商决定
//
// Failed 为本轮新判定失败的初始器下标，由调用方写回状态。
type Decision struct {
	Verdict Verdict
	Index   int
	Key     any
	Failed  []int
	Reason  string
}

// Decide 对当前检测阶段运行一轮初始器
//
// 纯函数：不修改 st，相同的状态与字节总是得到相同的决定。
// final 表示数据流已结束；累积字节达到预算时同样按 final 处理，
// 此时数据不足视为未匹配。
//
// 靠前的初始器仍处于数据不足时，靠后的初始器即使匹配也不能胜出，
// 保证胜出者与字节到达的分片方式无关。
func Decide(st *State, final bool) Decision {
	cat, ok := st.phase.Category()
	if !ok {
		return Decision{Verdict: VerdictExhausted, Index: -1, Reason: "not a detect phase"}
	}

	list := st.snap.list(cat)
	if len(list) == 0 {
		if cat == types.CategoryContent {
			return Decision{Verdict: VerdictExhausted, Index: -1, Reason: "no content initiators"}
		}
		return Decision{Verdict: VerdictSkip, Index: -1, Reason: "no " + cat.String() + " initiators"}
	}

	b := st.buf
	if len(b) == 0 && !final {
		return Decision{Verdict: VerdictNeedMoreData, Index: -1}
	}
	overBudget := len(b) >= st.budget
	final = final || overBudget

	d := Decision{Verdict: VerdictNeedMoreData, Index: -1}
	insufficient := false

	for i, init := range list {
		if st.isFailed(cat, i) {
			continue
		}

		if rb := init.RequiredBytes(); rb > 0 && len(b) < rb {
			if final {
				d.Failed = append(d.Failed, i)
			} else {
				insufficient = true
			}
			continue
		}

		r := match(init, b)
		switch {
		case r.IsMatched():
			if insufficient {
				// 等待靠前的初始器做出判断
				d.Reason = "blocked by an earlier initiator"
				return d
			}
			d.Verdict = VerdictMatched
			d.Index = i
			d.Key = r.Key()
			return d
		case r.IsInsufficient() && !final:
			insufficient = true
		default:
			d.Failed = append(d.Failed, i)
		}
	}

	switch {
	case insufficient:
		d.Verdict = VerdictNeedMoreData
	case overBudget:
		d.Verdict = VerdictExhausted
		d.Reason = "budget exhausted"
	case final:
		d.Verdict = VerdictExhausted
		d.Reason = "stream ended"
	default:
		// 全部未匹配但预算未耗尽：等待预算耗尽或连接关闭
		d.Verdict = VerdictNeedMoreData
	}
	return d
}

// match 调用 Match，初始器 panic 视为未匹配
func match(init pkgif.Initiator, b []byte) (r types.MatchResult) {
	defer func() {
		if p := recover(); p != nil {
			logger.Warn("初始器 Match panic", "initiator", init.Name(), "panic", p)
			r = types.NoMatch()
		}
	}()
	return init.Match(b)
}
