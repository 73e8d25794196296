package initiators

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// 编码魔数
var (
	gzipMagic   = []byte{0x1f, 0x8b}
	zstdMagic   = []byte{0x28, 0xb5, 0x2f, 0xfd}
	snappyMagic = []byte("\xff\x06\x00\x00sNaPpY")
	s2Magic     = []byte("\xff\x06\x00\x00S2sTwO")
)

// Compressed 压缩编码初始器
//
// 需要完整负载；匹配后安装有上限的解码器，魔数保留给解码器。
type Compressed struct {
	base
	magic   [][]byte
	decoder pkgif.Decoder
	closeFn func()
}

var _ pkgif.Initiator = (*Compressed)(nil)

// NewGzip 创建 gzip 编码初始器
func NewGzip(maxDecoded int64) *Compressed {
	return &Compressed{
		base:  base{name: "gzip", category: types.CategoryEncoding, required: prefixRequired, full: true},
		magic: [][]byte{gzipMagic},
		decoder: pkgif.DecoderFunc(func(p []byte) ([]byte, error) {
			zr, err := gzip.NewReader(bytes.NewReader(p))
			if err != nil {
				return nil, err
			}
			defer zr.Close()
			return readBounded(zr, maxDecoded)
		}),
	}
}

// NewZstd 创建 zstd 编码初始器
//
// 所有连接共享一个解码器，DecodeAll 可并发调用。
func NewZstd(maxDecoded int64) (*Compressed, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(0)}
	if maxDecoded > 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(uint64(maxDecoded)))
	}
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initiators: create zstd decoder: %w", err)
	}
	return &Compressed{
		base:  base{name: "zstd", category: types.CategoryEncoding, required: prefixRequired, full: true},
		magic: [][]byte{zstdMagic},
		decoder: pkgif.DecoderFunc(func(p []byte) ([]byte, error) {
			out, err := dec.DecodeAll(p, nil)
			if err != nil {
				return nil, err
			}
			if maxDecoded > 0 && int64(len(out)) > maxDecoded {
				return nil, ErrDecodedTooLarge
			}
			return out, nil
		}),
		closeFn: dec.Close,
	}, nil
}

// NewSnappy 创建 snappy/S2 帧格式编码初始器
func NewSnappy(maxDecoded int64) *Compressed {
	return &Compressed{
		base:  base{name: "snappy", category: types.CategoryEncoding, required: prefixRequired, full: true},
		magic: [][]byte{snappyMagic, s2Magic},
		decoder: pkgif.DecoderFunc(func(p []byte) ([]byte, error) {
			return readBounded(s2.NewReader(bytes.NewReader(p)), maxDecoded)
		}),
	}
}

// Match 实现 Initiator
func (c *Compressed) Match(b []byte) types.MatchResult {
	return matchPrefix(b, c.magic...)
}

// Install 实现 Initiator
func (c *Compressed) Install(ctx pkgif.InstallContext, _ any) (types.Phase, error) {
	ctx.SetDecoder(c.decoder)
	return types.PhaseDecompress, nil
}

// Close 释放解码器资源
func (c *Compressed) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Identity 无编码：直接进入内容检测
type Identity struct {
	base
}

var _ pkgif.Initiator = (*Identity)(nil)

// NewIdentity 创建 identity 编码初始器
func NewIdentity() *Identity {
	return &Identity{base: base{name: "identity", category: types.CategoryEncoding}}
}

// Match 实现 Initiator
func (*Identity) Match([]byte) types.MatchResult { return types.Matched(nil) }

// Install 实现 Initiator
func (*Identity) Install(pkgif.InstallContext, any) (types.Phase, error) {
	return types.PhaseContentDetect, nil
}

// readBounded 读取全部数据，超过 max 时返回 ErrDecodedTooLarge
func readBounded(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	out, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(out)) > max {
		return nil, ErrDecodedTooLarge
	}
	return out, nil
}
