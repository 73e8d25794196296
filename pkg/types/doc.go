// Package types 定义 apmrouter 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - phase.go  - Phase 协商阶段, Category 初始器类别
//   - match.go  - MatchResult 三态匹配结果
//   - metric.go - MetricPoint 指标数据点
//   - errors.go - 公共错误
package types
