package initiators

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dep2p/go-apmrouter/pkg/types"
)

// ============================================================================
//                              行协议
// ============================================================================

// MaxLineBytes 单行最大字节数
const MaxLineBytes = 64 << 10

// batchTerminator batch 协议的结束行
var batchTerminator = []byte("END")

// ParseLine 解析一行行协议
//
//	cpu.load,host=a,dc=eu 0.75 1700000000000
func ParseLine(line []byte) (types.MetricPoint, error) {
	var p types.MetricPoint

	fields := bytes.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return p, fmt.Errorf("%w: expected 2 or 3 fields, got %d", ErrInvalidLine, len(fields))
	}

	series := strings.Split(string(fields[0]), ",")
	p.Name = series[0]
	if !validName(p.Name) {
		return p, fmt.Errorf("%w: bad name %q", ErrInvalidLine, p.Name)
	}
	for _, kv := range series[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || v == "" {
			return p, fmt.Errorf("%w: bad tag %q", ErrInvalidLine, kv)
		}
		if p.Tags == nil {
			p.Tags = make(map[string]string, len(series)-1)
		}
		p.Tags[k] = v
	}

	v, err := strconv.ParseFloat(string(fields[1]), 64)
	if err != nil {
		return p, fmt.Errorf("%w: bad value %q", ErrInvalidLine, fields[1])
	}
	p.Value = v

	if len(fields) == 3 {
		ts, err := strconv.ParseInt(string(fields[2]), 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: bad timestamp %q", ErrInvalidLine, fields[2])
		}
		p.TimestampMs = ts
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// ParseLines 解析多行行协议
//
// 跳过空行与注释，遇到 END 行停止。返回有效数据点与被拒绝的行数。
func ParseLines(data []byte) ([]types.MetricPoint, int) {
	var (
		points   []types.MetricPoint
		rejected int
	)
	for len(data) > 0 {
		var line []byte
		line, data, _ = bytes.Cut(data, []byte{'\n'})
		line = bytes.TrimRight(line, "\r")
		if skipLine(line) {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(line), batchTerminator) {
			break
		}
		p, err := ParseLine(line)
		if err != nil {
			rejected++
			continue
		}
		points = append(points, p)
	}
	return points, rejected
}

// FormatLine 格式化为行协议（标签按键排序）
func FormatLine(p types.MetricPoint) string {
	var sb strings.Builder
	sb.WriteString(p.Name)
	if len(p.Tags) > 0 {
		keys := make([]string, 0, len(p.Tags))
		for k := range p.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteByte(',')
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(p.Tags[k])
		}
	}
	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatFloat(p.Value, 'g', -1, 64))
	if p.TimestampMs != 0 {
		sb.WriteByte(' ')
		sb.WriteString(strconv.FormatInt(p.TimestampMs, 10))
	}
	return sb.String()
}

func skipLine(line []byte) bool {
	t := bytes.TrimSpace(line)
	return len(t) == 0 || t[0] == '#'
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isNameByte(name[i], i == 0) {
			return false
		}
	}
	return true
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case first:
		return false
	case c >= '0' && c <= '9', c == '.', c == ':', c == '-', c == '/':
		return true
	}
	return false
}

// ============================================================================
//                              行缓冲
// ============================================================================

// lineBuffer 把任意分片的字节流切分为完整行
type lineBuffer struct {
	partial []byte
}

// feed 对 p 中每个完整行调用 fn（不含行尾）
func (l *lineBuffer) feed(p []byte, fn func(line []byte) error) error {
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			if len(l.partial)+len(p) > MaxLineBytes {
				l.partial = nil
				return ErrLineTooLong
			}
			l.partial = append(l.partial, p...)
			return nil
		}
		line := p[:i]
		if len(l.partial) > 0 {
			line = append(l.partial, line...)
			l.partial = nil
		}
		p = p[i+1:]
		if err := fn(bytes.TrimRight(line, "\r")); err != nil {
			return err
		}
	}
	return nil
}

// flush 处理末尾没有换行的残余数据
func (l *lineBuffer) flush(fn func(line []byte) error) error {
	if len(l.partial) == 0 {
		return nil
	}
	line := l.partial
	l.partial = nil
	return fn(bytes.TrimRight(line, "\r"))
}
