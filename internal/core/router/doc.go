// Package router 实现指标数据点路由
//
// 内容阶段解码出的数据点经 Router.Route 进入：
//   - 校验，非法数据点计入 rejected
//   - 缺省时间戳以接收时刻补齐
//   - 每个序列的最新值写入 LRU 目录（容量有限，最久未使用的序列被淘汰）
//   - 分发给订阅者；订阅者通道满时丢弃该批并计入 dropped，路由从不阻塞
package router
