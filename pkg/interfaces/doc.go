// Package interfaces 定义 apmrouter 的公共接口
//
// # 协商 SPI
//
//   - initiator.go - Initiator 初始器、InstallContext 安装上下文、
//     Stage 下游处理阶段、Decoder 解码器及可选能力接口
//
// # 指标路由
//
//   - sink.go      - MetricSink 指标汇、MetricCatalog 最新值目录
//
// 接口实现位于 internal/core 下对应目录，本包不依赖任何实现。
package interfaces
