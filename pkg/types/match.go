package types

// matchKind 匹配结果种类
type matchKind uint8

const (
	matchNone matchKind = iota
	matchInsufficient
	matchMatched
)

// MatchResult 初始器匹配结果
//
// 三态：NoMatch / Insufficient / Matched(key)。零值为 NoMatch。
// key 由初始器自行定义，原样传回 Install。
type MatchResult struct {
	kind matchKind
	key  any
}

// NoMatch 已有字节明确排除该初始器
func NoMatch() MatchResult {
	return MatchResult{kind: matchNone}
}

// Insufficient 需要更多字节才能判断
func Insufficient() MatchResult {
	return MatchResult{kind: matchInsufficient}
}

// Matched 匹配成功
func Matched(key any) MatchResult {
	return MatchResult{kind: matchMatched, key: key}
}

// IsNoMatch 是否未匹配
func (r MatchResult) IsNoMatch() bool { return r.kind == matchNone }

// IsInsufficient 是否数据不足
func (r MatchResult) IsInsufficient() bool { return r.kind == matchInsufficient }

// IsMatched 是否匹配成功
func (r MatchResult) IsMatched() bool { return r.kind == matchMatched }

// Key 返回匹配键，仅在 IsMatched 时有意义
func (r MatchResult) Key() any { return r.key }

// String 返回结果的字符串表示
func (r MatchResult) String() string {
	switch r.kind {
	case matchInsufficient:
		return "insufficient"
	case matchMatched:
		return "matched"
	default:
		return "no-match"
	}
}
