// Package negotiation 实现端口复用协商引擎
//
// 同一个监听端口上的每条连接在收到前几个字节时被逐级识别：
//
//	Init ──协议初始器──▶ EncodingDetect ──编码初始器──▶ Decompress
//	                                                      │ 首批解码输出
//	                                                      ▼
//	Complete ◀──关闭── Content ◀──内容分类器── ContentDetect
//
// 每个检测阶段按注册顺序运行对应类别的初始器（见 Decide）。
// 初始器可以直接跳到更靠后的阶段，但阶段只能前进；任何阶段都可能进入 Error。
//
// 组成：
//   - Registry：按类别分组的初始器注册表，写时复制，读取无锁
//   - State：单个连接的协商状态，只属于该连接的 goroutine
//   - Decide：纯函数，对状态运行一轮初始器，给出决定
//   - Engine/Session：应用决定、调用 Install、搭建聚合与解码链路
//
// 字节预算（MaxInitiatorBytes）限制每个检测阶段最多缓冲的字节数，
// 达到预算仍无匹配时连接进入 Error 并被关闭。
package negotiation
