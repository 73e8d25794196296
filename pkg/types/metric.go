package types

import (
	"math"
	"strings"
)

// MetricPoint 指标数据点
type MetricPoint struct {
	// Name 序列名，如 "service.http.latency"
	Name string `json:"name"`

	// Value 数值
	Value float64 `json:"value"`

	// TimestampMs Unix 毫秒时间戳，0 表示由接收方补齐
	TimestampMs int64 `json:"timestamp,omitempty"`

	// Tags 附加标签
	Tags map[string]string `json:"tags,omitempty"`
}

// Validate 校验数据点
func (p MetricPoint) Validate() error {
	if p.Name == "" || strings.ContainsAny(p.Name, " \t\r\n") {
		return ErrInvalidMetricPoint
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return ErrInvalidMetricPoint
	}
	if p.TimestampMs < 0 {
		return ErrInvalidMetricPoint
	}
	return nil
}
