// Package metrics 提供 apmrouter 自身的监控指标
//
// 基于 prometheus/client_golang，使用独立 Registry（不污染全局 DefaultRegisterer）：
//   - 协商结果：按初始器/阶段统计胜出与失败，按结果统计字节数与耗时
//   - 连接：活跃数、总数、持续时间
//   - 流量：按协议链统计入站/出站字节，最近 60 秒速率（Traffic）
//   - 聚合：在途/完成/丢弃（读取 aggregator.Counters）
//   - 路由：接收/拒绝/丢弃/淘汰与目录大小（读取路由器计数）
//
// # 快速开始
//
//	m, _ := metrics.New(metrics.DefaultConfig())
//	engine, _ := negotiation.NewEngine(registry, cfg, negotiation.WithObserver(m))
//	http.Handle("/metrics", m.Handler())
//
// # Fx 模块
//
// Module() 提供 *Metrics、negotiation.Observer、Reporter 与名为
// "metrics_handler" 的 http.Handler；禁用时这些输出均为 nil。
//
// # 并发安全
//
// 所有方法并发安全。Observer 回调在连接 goroutine 中同步执行，只做原子更新。
package metrics
