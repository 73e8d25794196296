package negotiation

import (
	"fmt"
	"sync"
	"sync/atomic"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// snapshot 注册表的不可变快照
//
// 每个会话在创建时固定一个快照，失败集合中的下标始终指向同一列表。
type snapshot struct {
	lists [types.NumCategories][]pkgif.Initiator
	names map[string]struct{}
}

func (s *snapshot) list(c types.Category) []pkgif.Initiator {
	if !c.Valid() {
		return nil
	}
	return s.lists[c]
}

// Registry 初始器注册表
//
// 按类别分组、按注册顺序排列。写入采用复制后原子替换，
// 读取无锁，可被任意数量的连接并发访问。
type Registry struct {
	mu   sync.Mutex // 串行化写入
	snap atomic.Pointer[snapshot]
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	r := &Registry{}
	r.snap.Store(&snapshot{names: make(map[string]struct{})})
	return r
}

// Register 追加注册初始器
//
// 同一批初始器要么全部生效，要么全部不生效。
func (r *Registry) Register(inits ...pkgif.Initiator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.snap.Load()
	next := &snapshot{names: make(map[string]struct{}, len(cur.names)+len(inits))}
	for c := range cur.lists {
		next.lists[c] = append([]pkgif.Initiator(nil), cur.lists[c]...)
	}
	for name := range cur.names {
		next.names[name] = struct{}{}
	}

	for _, init := range inits {
		if init == nil {
			return ErrNilInitiator
		}
		name := init.Name()
		if name == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidInitiator)
		}
		if init.RequiredBytes() < 0 {
			return fmt.Errorf("%w: %s requires %d bytes", ErrInvalidInitiator, name, init.RequiredBytes())
		}
		cat := init.Category()
		if !cat.Valid() {
			return fmt.Errorf("%w: %s has unknown category %d", ErrInvalidInitiator, name, cat)
		}
		if _, dup := next.names[name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateInitiator, name)
		}
		next.names[name] = struct{}{}
		next.lists[cat] = append(next.lists[cat], init)
	}

	r.snap.Store(next)
	for _, init := range inits {
		logger.Debug("初始器已注册",
			"initiator", init.Name(),
			"category", init.Category().String(),
			"requiredBytes", init.RequiredBytes(),
			"fullPayload", init.RequiresFullPayload())
	}
	return nil
}

// Initiators 返回某类别的初始器（按注册顺序）
func (r *Registry) Initiators(c types.Category) []pkgif.Initiator {
	return append([]pkgif.Initiator(nil), r.snap.Load().list(c)...)
}

// Names 返回所有已注册初始器名称（按类别、注册顺序）
func (r *Registry) Names() []string {
	s := r.snap.Load()
	var names []string
	for c := range s.lists {
		for _, init := range s.lists[c] {
			names = append(names, init.Name())
		}
	}
	return names
}

// Len 已注册初始器数量
func (r *Registry) Len() int {
	return len(r.snap.Load().names)
}

func (r *Registry) current() *snapshot {
	return r.snap.Load()
}
