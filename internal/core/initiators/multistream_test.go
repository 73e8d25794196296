package initiators

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

func TestMultistream_CommandProtocol(t *testing.T) {
	m := NewMultistream(nil, mapCatalog{}, nil)
	ictx := newFakeInstallContext()
	defer ictx.cancel()

	phase, err := m.Install(ictx, nil)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseComplete, phase)

	var in bytes.Buffer
	in.Write(multistreamHeader)
	in.Write(delimited(ProtocolCommand))
	in.WriteString("PING\nQUIT\n")
	require.NoError(t, ictx.stage.Write(in.Bytes()))

	require.Eventually(t, func() bool {
		return strings.Contains(ictx.out.String(), "BYE\n")
	}, 2*time.Second, 10*time.Millisecond)

	out := ictx.out.String()
	assert.Contains(t, out, ProtocolCommand)
	assert.Contains(t, out, "PONG\n")
	require.Eventually(t, ictx.isClosed, 2*time.Second, 10*time.Millisecond)
}

func TestMultistream_IngestProtocol(t *testing.T) {
	sink := &recordSink{}
	m := NewMultistream(sink, nil, nil)
	ictx := newFakeInstallContext()
	defer ictx.cancel()

	_, err := m.Install(ictx, nil)
	require.NoError(t, err)

	var in bytes.Buffer
	in.Write(multistreamHeader)
	in.Write(delimited(ProtocolIngest))
	in.WriteString("cpu 1\nmem 2\n")
	require.NoError(t, ictx.stage.Write(in.Bytes()))

	require.Eventually(t, func() bool {
		return len(sink.points()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ictx.stage.Close())
}

func TestMultistream_UnknownProtocol(t *testing.T) {
	m := NewMultistream(nil, nil, nil)
	ictx := newFakeInstallContext()
	defer ictx.cancel()

	_, err := m.Install(ictx, nil)
	require.NoError(t, err)

	var in bytes.Buffer
	in.Write(multistreamHeader)
	in.Write(delimited("/apm/unknown/9.9.9"))
	require.NoError(t, ictx.stage.Write(in.Bytes()))

	require.Eventually(t, func() bool {
		return strings.Contains(ictx.out.String(), "na\n")
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ictx.stage.Close())
}
