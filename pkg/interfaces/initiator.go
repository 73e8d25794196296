package interfaces

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

// ErrStageDone 下游阶段已正常结束，不再接收数据
//
// Stage.Write 返回该错误时，连接被平稳关闭，不视为故障。
var ErrStageDone = errors.New("interfaces: stage done")

// Initiator 定义协议/编码/内容初始器
//
// 初始器注册后不可变，被所有连接共享，必须支持并发只读访问。
type Initiator interface {
	// Name 初始器名称，注册表内唯一
	Name() string

	// Category 类别，决定在哪个阶段被测试
	Category() types.Category

	// RequiredBytes 至少需要多少字节才调用 Match，0 表示总是尝试
	RequiredBytes() int

	// RequiresFullPayload 是否需要完整负载后才能开始解码
	RequiresFullPayload() bool

	// Match 检查目前累积的字节
	//
	// 纯函数，不得修改 b。无法判断时返回 Insufficient，
	// 仅当已有字节明确排除自身时返回 NoMatch。
	Match(b []byte) types.MatchResult

	// Install 在 Matched 之后对每个连接调用一次
	//
	// 通过 ctx 安装下游阶段，返回引擎应进入的下一阶段。
	Install(ctx InstallContext, key any) (types.Phase, error)
}

// InstallContext 安装上下文（单个连接的句柄）
//
// 仅在 Install 调用期间有效；Install 返回错误时所有设置被丢弃。
type InstallContext interface {
	// Context 连接生命周期 context，连接关闭时取消
	Context() context.Context

	// ID 连接标识
	ID() string

	// RemoteAddr 远端地址
	RemoteAddr() net.Addr

	// Writer 向对端写数据
	Writer() io.Writer

	// Close 关闭连接
	Close() error

	// SetStage 设置接收负载的下游阶段（进入 Content/Complete 时必需）
	SetStage(stage Stage)

	// SetDecoder 设置解码器（进入 Decompress 时必需）
	SetDecoder(dec Decoder)

	// Skip 声明前 n 个字节已被本初始器消费（如帧魔数），不传给下一阶段
	Skip(n int)
}

// Stage 下游处理阶段
//
// Write 不得在返回后持有 p。Close 表示数据流结束。
type Stage interface {
	Write(p []byte) error
	Close() error
}

// Aborter 可选：异常终止时丢弃已收数据
type Aborter interface {
	Abort()
}

// Decoder 传输编码解码器
//
// 需要完整负载的编码每个连接只调用一次 Decode，输入为完整负载。
// 实现必须可被多个连接并发调用。
type Decoder interface {
	Decode(p []byte) ([]byte, error)
}

// DecoderFunc 函数适配器
type DecoderFunc func(p []byte) ([]byte, error)

// Decode 实现 Decoder
func (f DecoderFunc) Decode(p []byte) ([]byte, error) { return f(p) }

// PayloadTailSize 传给 PayloadTerminator 的负载末尾最大字节数
const PayloadTailSize = 64

// PayloadTerminator 可选：协议自带负载结束信号
//
// 聚合器每收到一块数据调用一次，tail 为已聚合负载的末尾
// （最多 PayloadTailSize 字节，负载更短时即完整负载），与分片方式无关。
// 返回 true 时立即交付完整负载。
type PayloadTerminator interface {
	PayloadEnded(tail []byte) bool
}

// CloseCompleter 可选：连接关闭是否视为负载完成
//
// 未实现时视为 true；返回 false 时连接关闭会丢弃未完成的聚合。
type CloseCompleter interface {
	CloseCompletes() bool
}
