// Package aggregator 实现完整负载聚合器
//
// 部分初始器（无显式长度、帧边界只有在流结束时才能确定）必须拿到
// 整个负载才能开始解码。Aggregator 作为 Stage 装饰器插在这些初始器
// 安装的下游阶段之前：
//
//	连接字节 ──▶ Aggregator.Write ──(拷贝一次，按到达顺序)──▶ chunks
//	                                                          │
//	结束信号 / 连接关闭 ──▶ flush ──▶ next.Write(composite) ──▶ next.Close()
//
// # 完成条件
//
//  1. 初始器实现 PayloadTerminator 且 PayloadEnded 返回 true
//  2. 连接关闭（Close），且初始器未通过 CloseCompleter 拒绝关闭即完成
//
// 连接异常终止（Abort）或关闭不视为完成时，已收数据直接丢弃，
// 下游阶段实现 Aborter 时会收到 Abort。
//
// # 计数器
//
// Counters 在引擎范围共享，使用原子操作：
//   - InFlight  进行中的聚合数
//   - Completed 已交付的聚合数
//   - Discarded 被丢弃的聚合数
//
// # 并发
//
// 单个 Aggregator 只被拥有该连接的 goroutine 访问，不加锁。
package aggregator
