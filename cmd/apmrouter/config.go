package main

import (
	"strconv"
	"strings"

	"github.com/dep2p/go-apmrouter/config"
)

type logConfig = config.LogConfig

// 环境变量（均使用 APMROUTER_ 前缀）
const (
	envPrefix   = "APMROUTER_"
	envListen   = "LISTEN"
	envLogLevel = "LOG_LEVEL"
	envLogFile  = "LOG_FILE"
	envBudget   = "MAX_INITIATOR_BYTES"
	envMetrics  = "METRICS"
	envDisabled = "DISABLE_INITIATORS"
)

// flagOverrides 命令行覆盖项，零值表示未指定
type flagOverrides struct {
	configFile string
	preset     string
	listenAddr string
	logLevel   string
	budget     int
}

// buildConfig 组合配置：默认值 → 配置文件 → 预设 → 环境变量 → 命令行
func buildConfig(flags flagOverrides, getenv func(string) string) (*config.Config, error) {
	cfg := config.NewConfig()
	if flags.configFile != "" {
		loaded, err := config.LoadFile(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := config.ApplyPreset(cfg, flags.preset); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, getenv)

	if flags.listenAddr != "" {
		cfg.Listen.Addr = flags.listenAddr
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.budget > 0 {
		cfg.Negotiation.MaxInitiatorBytes = flags.budget
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides 应用环境变量覆盖配置
//
// 支持的环境变量：
//   - APMROUTER_LISTEN: 监听地址
//   - APMROUTER_LOG_LEVEL: 日志级别
//   - APMROUTER_LOG_FILE: 日志文件路径
//   - APMROUTER_MAX_INITIATOR_BYTES: 协商字节预算
//   - APMROUTER_METRICS: 是否启用监控指标
//   - APMROUTER_DISABLE_INITIATORS: 禁用的内置协议（逗号分隔，如 http,batch）
func applyEnvOverrides(cfg *config.Config, getenv func(string) string) {
	if v := getenv(envPrefix + envListen); v != "" {
		cfg.Listen.Addr = v
	}
	if v := getenv(envPrefix + envLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv(envPrefix + envLogFile); v != "" {
		cfg.Log.File = v
	}
	if v := getenv(envPrefix + envBudget); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Negotiation.MaxInitiatorBytes = n
		}
	}
	if v := getenv(envPrefix + envMetrics); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	for _, name := range splitAndTrim(getenv(envPrefix+envDisabled), ",") {
		switch strings.ToLower(name) {
		case "http":
			cfg.Initiators.HTTP = false
		case "multistream":
			cfg.Initiators.Multistream = false
		case "command":
			cfg.Initiators.Command = false
		case "batch":
			cfg.Initiators.Batch = false
		case "ingest":
			cfg.Initiators.Ingest = false
		}
	}
}

// ============================================================================
//                              辅助函数
// ============================================================================

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitAndTrim 分割字符串并去除空白
func splitAndTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
