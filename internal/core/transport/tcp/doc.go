// Package tcp 实现单端口 TCP 接入
//
// Server 在一个端口上接受所有连接，每个连接由独立 goroutine 读取并送入
// 协商引擎，协议由引擎按首批字节判定。
//
// # 连接生命周期
//
//  1. Accept（受 accept 速率与最大连接数限制）
//  2. 分配 uuid 会话 ID，创建 negotiation.Session
//  3. 协商期间使用协商超时作为读截止时间，进入内容阶段后改用空闲超时
//  4. 读到 EOF 调用 Engine.Close；其他读错误调用 Engine.Abort
//  5. 下游返回 pkgif.ErrStageDone 视为正常结束
//
// # 使用示例
//
//	srv, _ := tcp.NewServer(engine, tcp.DefaultConfig())
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//	defer srv.Close()
package tcp
