package negotiation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

func TestRegistry_OrderByCategory(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(
		&fakeInitiator{name: "json", cat: types.CategoryContent},
		&fakeInitiator{name: "http", cat: types.CategoryProtocol},
		&fakeInitiator{name: "gzip", cat: types.CategoryEncoding},
		&fakeInitiator{name: "raw", cat: types.CategoryProtocol},
	))

	assert.Equal(t, 4, reg.Len())
	assert.Equal(t, []string{"http", "raw", "gzip", "json"}, reg.Names())

	protos := reg.Initiators(types.CategoryProtocol)
	require.Len(t, protos, 2)
	assert.Equal(t, "http", protos[0].Name())
	assert.Equal(t, "raw", protos[1].Name())
	assert.Nil(t, reg.Initiators(types.Category(7)))
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	reg := NewRegistry()

	assert.ErrorIs(t, reg.Register(nil), ErrNilInitiator)
	assert.ErrorIs(t, reg.Register(&fakeInitiator{cat: types.CategoryProtocol}), ErrInvalidInitiator)
	assert.ErrorIs(t, reg.Register(&fakeInitiator{name: "neg", required: -1}), ErrInvalidInitiator)
	assert.ErrorIs(t, reg.Register(&fakeInitiator{name: "cat", cat: types.Category(-1)}), ErrInvalidInitiator)

	require.NoError(t, reg.Register(&fakeInitiator{name: "http"}))
	assert.ErrorIs(t, reg.Register(&fakeInitiator{name: "http"}), ErrDuplicateInitiator)
}

func TestRegistry_AllOrNothing(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(
		&fakeInitiator{name: "a"},
		&fakeInitiator{name: "b"},
		&fakeInitiator{name: "a"},
	)
	require.ErrorIs(t, err, ErrDuplicateInitiator)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.Names())
}

func TestRegistry_SessionPinsSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, 1024, httpLike())
	s := e.NewSession(context.Background(), "s1", &fakeConn{})

	require.NoError(t, e.Registry().Register(rawLike()))

	// 旧会话看不到新注册的初始器
	require.NoError(t, e.Feed(s, []byte("XY")))
	assert.Equal(t, types.PhaseInit, s.Phase())
	assert.Len(t, s.State().snap.list(types.CategoryProtocol), 1)

	s2 := e.NewSession(context.Background(), "s2", &fakeConn{})
	assert.Len(t, s2.State().snap.list(types.CategoryProtocol), 2)
}
