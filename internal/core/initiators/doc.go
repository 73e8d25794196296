// Package initiators 提供 apmrouter 内置初始器
//
// 协议初始器（按注册顺序）：
//   - http：HTTP/1.x 请求，交给内置 API 服务（/healthz、/metrics、/v1/points、/v1/catalog）
//   - multistream：multistream-select 协商，提供 /apm/cmd/1.0.0 与 /apm/ingest/1.0.0
//   - command：行文本命令（PING/STAT/LAST/HELP/QUIT）
//   - batch：APMB 魔数，整个连接的数据作为一批行协议数据点
//   - ingest：APM1 魔数，后续依次检测传输编码与内容类型
//
// 编码初始器：gzip、zstd、snappy（S2 兼容帧格式）、identity。
//
// 内容分类器：json、protobuf、line（行协议，流式处理）。
//
// 行协议格式：
//
//	name[,key=value...] value [timestamp_ms]
//
// 以 # 开头的行与空行被忽略。
package initiators
