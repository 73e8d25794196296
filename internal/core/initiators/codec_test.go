package initiators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

func TestDecodeJSON(t *testing.T) {
	points, rejected, err := DecodeJSON([]byte(` [{"name":"cpu","value":1},{"name":"","value":2}] `))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "cpu", points[0].Name)
	assert.Equal(t, 1, rejected)

	points, rejected, err = DecodeJSON([]byte(`{"points":[{"name":"mem","value":3,"timestamp":9,"tags":{"host":"a"}}]}`))
	require.NoError(t, err)
	assert.Zero(t, rejected)
	assert.Equal(t, []types.MetricPoint{{Name: "mem", Value: 3, TimestampMs: 9, Tags: map[string]string{"host": "a"}}}, points)
}

func TestDecodeJSON_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", `"str"`, `[{"name":`, `{"points": 5}`} {
		_, _, err := DecodeJSON([]byte(in))
		assert.ErrorIs(t, err, ErrInvalidPayload, in)
	}
}

func TestProtobuf_RoundTrip(t *testing.T) {
	in := []types.MetricPoint{
		{Name: "cpu", Value: 0.5, TimestampMs: 1700000000000, Tags: map[string]string{"host": "a", "dc": "eu"}},
		{Name: "mem", Value: -1},
	}
	data := MarshalProtobuf(in)
	assert.Equal(t, byte(protobufFirstByte), data[0])

	out, rejected, err := DecodeProtobuf(data)
	require.NoError(t, err)
	assert.Zero(t, rejected)
	assert.Equal(t, in, out)
}

func TestDecodeProtobuf_SkipsUnknownFields(t *testing.T) {
	var point []byte
	point = protowire.AppendTag(point, fieldPointName, protowire.BytesType)
	point = protowire.AppendString(point, "up")
	point = protowire.AppendTag(point, 15, protowire.VarintType)
	point = protowire.AppendVarint(point, 99)

	var data []byte
	data = protowire.AppendTag(data, fieldBatchPoints, protowire.BytesType)
	data = protowire.AppendBytes(data, point)
	data = protowire.AppendTag(data, 2, protowire.BytesType)
	data = protowire.AppendString(data, "ignored")

	out, _, err := DecodeProtobuf(data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "up", out[0].Name)
}

func TestDecodeProtobuf_Invalid(t *testing.T) {
	data := MarshalProtobuf([]types.MetricPoint{{Name: "cpu", Value: 1}})
	_, _, err := DecodeProtobuf(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrInvalidPayload)

	// 名称为空的数据点被拒绝而不是报错
	out, rejected, err := DecodeProtobuf(MarshalProtobuf([]types.MetricPoint{{Value: 1}}))
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 1, rejected)
}
