package types

import "errors"

// ============================================================================
//                              数据点相关错误
// ============================================================================

var (
	// ErrInvalidMetricPoint 无效数据点（空名称、名称含空白、非有限值或负时间戳）
	ErrInvalidMetricPoint = errors.New("types: invalid metric point")
)
