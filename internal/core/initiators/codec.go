package initiators

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

// ============================================================================
//                              JSON
// ============================================================================

// jsonEnvelope {"points":[...]} 形式
type jsonEnvelope struct {
	Points []types.MetricPoint `json:"points"`
}

// DecodeJSON 解析 JSON 负载
//
// 支持数据点数组或 {"points":[...]}。返回有效数据点与被拒绝的数量。
func DecodeJSON(p []byte) ([]types.MetricPoint, int, error) {
	p = bytes.TrimSpace(p)
	if len(p) == 0 {
		return nil, 0, fmt.Errorf("%w: empty json", ErrInvalidPayload)
	}

	var raw []types.MetricPoint
	switch p[0] {
	case '[':
		if err := json.Unmarshal(p, &raw); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	case '{':
		var env jsonEnvelope
		if err := json.Unmarshal(p, &env); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		raw = env.Points
	default:
		return nil, 0, fmt.Errorf("%w: json must be an array or object", ErrInvalidPayload)
	}

	points, rejected := filterValid(raw)
	return points, rejected, nil
}

func filterValid(raw []types.MetricPoint) ([]types.MetricPoint, int) {
	points := raw[:0]
	rejected := 0
	for _, pt := range raw {
		if pt.Validate() != nil {
			rejected++
			continue
		}
		points = append(points, pt)
	}
	return points, rejected
}

// ============================================================================
//                              Protobuf
// ============================================================================
//
//	message Batch { repeated Point points = 1; }
//	message Point {
//	  string name = 1;
//	  double value = 2;
//	  int64 timestamp_ms = 3;
//	  map<string, string> tags = 4;
//	}

const (
	fieldBatchPoints protowire.Number = 1

	fieldPointName      protowire.Number = 1
	fieldPointValue     protowire.Number = 2
	fieldPointTimestamp protowire.Number = 3
	fieldPointTags      protowire.Number = 4

	fieldEntryKey   protowire.Number = 1
	fieldEntryValue protowire.Number = 2
)

// MarshalProtobuf 把数据点编码为 Batch 消息
func MarshalProtobuf(points []types.MetricPoint) []byte {
	var out []byte
	for _, p := range points {
		out = protowire.AppendTag(out, fieldBatchPoints, protowire.BytesType)
		out = protowire.AppendBytes(out, marshalPoint(p))
	}
	return out
}

func marshalPoint(p types.MetricPoint) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldPointName, protowire.BytesType)
	b = protowire.AppendString(b, p.Name)
	b = protowire.AppendTag(b, fieldPointValue, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(p.Value))
	if p.TimestampMs != 0 {
		b = protowire.AppendTag(b, fieldPointTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(p.TimestampMs))
	}

	keys := make([]string, 0, len(p.Tags))
	for k := range p.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, fieldEntryKey, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, fieldEntryValue, protowire.BytesType)
		entry = protowire.AppendString(entry, p.Tags[k])
		b = protowire.AppendTag(b, fieldPointTags, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

// DecodeProtobuf 解析 Batch 消息
func DecodeProtobuf(p []byte) ([]types.MetricPoint, int, error) {
	var raw []types.MetricPoint
	for len(p) > 0 {
		num, typ, n := protowire.ConsumeTag(p)
		if n < 0 {
			return nil, 0, protoErr(n)
		}
		p = p[n:]

		if num == fieldBatchPoints && typ == protowire.BytesType {
			msg, m := protowire.ConsumeBytes(p)
			if m < 0 {
				return nil, 0, protoErr(m)
			}
			pt, err := unmarshalPoint(msg)
			if err != nil {
				return nil, 0, err
			}
			raw = append(raw, pt)
			p = p[m:]
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, p)
		if m < 0 {
			return nil, 0, protoErr(m)
		}
		p = p[m:]
	}

	points, rejected := filterValid(raw)
	return points, rejected, nil
}

func unmarshalPoint(b []byte) (types.MetricPoint, error) {
	var pt types.MetricPoint
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return pt, protoErr(n)
		}
		b = b[n:]

		switch {
		case num == fieldPointName && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return pt, protoErr(m)
			}
			pt.Name = v
			n = m
		case num == fieldPointValue && typ == protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return pt, protoErr(m)
			}
			pt.Value = math.Float64frombits(v)
			n = m
		case num == fieldPointTimestamp && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return pt, protoErr(m)
			}
			pt.TimestampMs = int64(v)
			n = m
		case num == fieldPointTags && typ == protowire.BytesType:
			entry, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return pt, protoErr(m)
			}
			k, v, err := unmarshalEntry(entry)
			if err != nil {
				return pt, err
			}
			if pt.Tags == nil {
				pt.Tags = make(map[string]string)
			}
			pt.Tags[k] = v
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return pt, protoErr(n)
			}
		}
		b = b[n:]
	}
	return pt, nil
}

func unmarshalEntry(b []byte) (key, value string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", protoErr(n)
		}
		b = b[n:]
		if typ == protowire.BytesType && (num == fieldEntryKey || num == fieldEntryValue) {
			s, m := protowire.ConsumeString(b)
			if m < 0 {
				return "", "", protoErr(m)
			}
			if num == fieldEntryKey {
				key = s
			} else {
				value = s
			}
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return "", "", protoErr(m)
		}
		b = b[m:]
	}
	return key, value, nil
}

func protoErr(n int) error {
	return fmt.Errorf("%w: %v", ErrInvalidPayload, protowire.ParseError(n))
}
