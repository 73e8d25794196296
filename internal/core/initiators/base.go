package initiators

import (
	"bytes"
	"context"
	"fmt"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/lib/log"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

var logger = log.Logger("core/initiators")

// base 初始器公共属性
type base struct {
	name     string
	category types.Category
	required int
	full     bool
}

func (b base) Name() string              { return b.name }
func (b base) Category() types.Category  { return b.category }
func (b base) RequiredBytes() int        { return b.required }
func (b base) RequiresFullPayload() bool { return b.full }

// prefixRequired 前缀类初始器的最少字节数
//
// 首字节即可排除不一致的前缀；一致但更短的输入由 matchPrefix 返回 Insufficient。
const prefixRequired = 1

// matchPrefix 返回 b 以哪个前缀开头
//
// b 比某个候选前缀短且与其一致时返回 Insufficient。
func matchPrefix(b []byte, prefixes ...[]byte) types.MatchResult {
	short := false
	for _, p := range prefixes {
		if len(b) < len(p) {
			if bytes.HasPrefix(p, b) {
				short = true
			}
			continue
		}
		if bytes.HasPrefix(b, p) {
			return types.Matched(string(p))
		}
	}
	if short {
		return types.Insufficient()
	}
	return types.NoMatch()
}

// nopSink 未配置路由时丢弃数据点
type nopSink struct{}

func (nopSink) Route(context.Context, []types.MetricPoint) error { return nil }

// ackLine 负载处理结果回执
func ackLine(accepted, rejected int) []byte {
	return []byte(fmt.Sprintf("OK accepted=%d rejected=%d\n", accepted, rejected))
}

// errLine 错误回执
func errLine(err error) []byte {
	return []byte(fmt.Sprintf("ERR %v\n", err))
}

var _ pkgif.MetricSink = nopSink{}
