// Package main 提供 apmrouter 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-apmrouter"
	"github.com/dep2p/go-apmrouter/pkg/lib/log"
)

var logger = log.Logger("apmrouter/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖（「这次运行」想怎么跑）
//   JSON 配置文件：持久化配置
//
// 优先级：命令行 > 环境变量（APMROUTER_*）> 预设 > 配置文件 > 默认值
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	listenAddr = flag.String("listen", "", "监听地址（如 :7070）")
	configFile = flag.String("config", "", "配置文件路径（JSON）")
	logLevel   = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	preset     = flag.String("preset", "", "部署预设 (default/edge/gateway/minimal)")
	budget     = flag.Int("budget", 0, "协商字节预算（MaxInitiatorBytes）")
	printCfg   = flag.Bool("print-config", false, "打印生效配置后退出")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	cfg, err := buildConfig(flagOverrides{
		configFile: *configFile,
		preset:     *preset,
		listenAddr: *listenAddr,
		logLevel:   *logLevel,
		budget:     *budget,
	}, os.Getenv)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	if *printCfg {
		data, err := cfg.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	closer, err := setupLogging(cfg.Log)
	if err != nil {
		return fmt.Errorf("日志配置错误: %w", err)
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	r, err := apmrouter.New(apmrouter.WithConfig(cfg))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	fmt.Printf("apmrouter 监听 %s，按 Ctrl+C 退出\n", r.Addr())

	<-ctx.Done()
	logger.Info("收到退出信号，正在关闭")
	return r.Close()
}

// setupLogging 按配置重建默认 logger，返回需要关闭的日志文件
func setupLogging(cfg logConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var (
		w      io.Writer = os.Stderr
		closer io.Closer
	)
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // 用户指定的日志路径
		if err != nil {
			return nil, err
		}
		w, closer = f, f
	}
	log.Configure(w, log.Format(cfg.Format), level)
	return closer, nil
}
