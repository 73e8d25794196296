package initiators

import (
	"context"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
)

// Set 一组内置初始器，按注册顺序排列
type Set struct {
	list   []pkgif.Initiator
	http   *HTTP
	zstd   *Compressed
	closed bool
}

// Builtins 按配置创建内置初始器
//
// 顺序：http、multistream、command、batch、ingest、gzip、zstd、snappy、
// identity、json、protobuf、line。编码与内容初始器总是注册。
func Builtins(cfg Config, deps Deps) (*Set, error) {
	s := &Set{}

	if cfg.HTTP {
		s.http = NewHTTP(newAPI(deps, cfg.MaxPayloadBytes, cfg.MaxDecodedBytes), cfg.ReadHeaderTimeout)
		s.list = append(s.list, s.http)
	}
	if cfg.Multistream {
		s.list = append(s.list, NewMultistream(deps.Sink, deps.Catalog, deps.Stats))
	}
	if cfg.Command {
		s.list = append(s.list, NewCommand(deps.Catalog, deps.Stats))
	}
	if cfg.Batch {
		s.list = append(s.list, NewBatch(deps.Sink))
	}
	if cfg.Ingest {
		s.list = append(s.list, NewIngest())
	}

	zstd, err := NewZstd(cfg.MaxDecodedBytes)
	if err != nil {
		return nil, err
	}
	s.zstd = zstd
	s.list = append(s.list,
		NewGzip(cfg.MaxDecodedBytes),
		zstd,
		NewSnappy(cfg.MaxDecodedBytes),
		NewIdentity(),
		NewJSON(deps.Sink),
		NewProtobuf(deps.Sink),
		NewLine(deps.Sink),
	)
	return s, nil
}

// Initiators 返回初始器列表（副本）
func (s *Set) Initiators() []pkgif.Initiator {
	return append([]pkgif.Initiator(nil), s.list...)
}

// Names 返回初始器名称
func (s *Set) Names() []string {
	names := make([]string, len(s.list))
	for i, init := range s.list {
		names[i] = init.Name()
	}
	return names
}

// Close 关闭 HTTP 服务并释放解码器
func (s *Set) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.http != nil {
		err = s.http.Close(ctx)
	}
	s.zstd.Close()
	return err
}
