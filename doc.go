// Package apmrouter 提供单端口多协议的 APM 指标接入路由
//
// 一个 TCP 端口同时承载 HTTP、multistream-select、行文本命令、批量与
// 流式上报等协议。每个连接的前若干字节由一组初始器（Initiator）按注册
// 顺序判定协议、传输编码（gzip/zstd/snappy）与内容格式（JSON/protobuf/行协议），
// 协商完成后数据流交给对应的处理器，解码出的指标数据点进入路由器。
//
// # 快速开始
//
//	r, err := apmrouter.New(
//	    apmrouter.WithListenAddr(":7070"),
//	    apmrouter.WithMaxInitiatorBytes(2048),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := r.Start(ctx); err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	sub, _ := r.Subscribe(64)
//	for batch := range sub.C() {
//	    // 处理数据点
//	}
//
// # 协商阶段
//
//	Init ─► EncodingDetect ─► Decompress ─► ContentDetect ─► Content ─► Complete
//	  │            │               │               │
//	  └────────────┴───────────────┴───────────────┴──────────► Error
//
// 协商阶段只会前进；字节预算（MaxInitiatorBytes）耗尽仍无匹配时连接被关闭。
//
// # 扩展
//
// WithInitiators 注册自定义初始器，优先于同类别的内置初始器；
// WithFxOptions 可向内部 fx 应用追加任意选项。
package apmrouter
