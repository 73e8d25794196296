// Package lib 包含基础设施工具库
//
// 本目录包含与协商引擎无关的通用工具库：
//
//   - log: 基于 log/slog 的日志封装
//
// # 与 pkg/ 其他目录的关系
//
//   - interfaces/: 协商 SPI 与指标路由接口
//   - types/: 公共类型定义
//   - lib/: 基础设施工具库（本目录）
//
// # 使用示例
//
//	import "github.com/dep2p/go-apmrouter/pkg/lib/log"
//
//	var logger = log.Logger("core/negotiation")
package lib
