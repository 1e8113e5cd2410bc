// Package main 提供 netpipe 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-netpipe"
	"github.com/dep2p/go-netpipe/internal/util/logger"
)

var log = logger.Logger("cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行模式与地址（「这次运行」想怎么跑）
//   JSON 配置文件：阈值、超时、TLS 证书等持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 运行参数
	// ─────────────────────────────────────────────────────────────────────
	mode       = flag.String("mode", modeEchoServer, "运行模式 (echo-server/echo-client/vault-server/vault-client)")
	addr       = flag.String("addr", "127.0.0.1:9000", "监听或连接地址")
	useTLS     = flag.Bool("tls", false, "在 TCP 之上启用 TLS")
	useMux     = flag.Bool("mux", false, "在 TLS/TCP 之上启用 yamux 多路复用")
	serverName = flag.String("server-name", "localhost", "TLS 客户端校验的服务器名")
	insecure   = flag.Bool("insecure", false, "TLS 客户端跳过证书校验")
	message    = flag.String("message", "hello netpipe", "echo-client 发送的内容")
	count      = flag.Int("count", 1, "echo-client 发送次数")

	// ─────────────────────────────────────────────────────────────────────
	// 配置参数
	// ─────────────────────────────────────────────────────────────────────
	configFile = flag.String("config", "", "配置文件路径")
	preset     = flag.String("preset", "", "预设配置 (default/low-latency/bulk)")
	metrics    = flag.String("metrics", "", "Prometheus 指标监听地址，如 127.0.0.1:9090")

	// ─────────────────────────────────────────────────────────────────────
	// 日志与信息
	// ─────────────────────────────────────────────────────────────────────
	logFile     = flag.String("log", "", "日志文件路径（默认输出到 stderr）")
	logLevel    = flag.String("log-level", "", "日志级别，如 pump=debug,info（覆盖 NETPIPE_LOG_LEVEL）")
	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		printVersion()
		return nil
	}
	if *showHelp {
		printHelp()
		return nil
	}

	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		defer func() { _ = f.Close() }()
		logger.SetOutput(f)
	}
	if *logLevel != "" {
		if err := logger.SetLevels(*logLevel); err != nil {
			return fmt.Errorf("日志级别无效: %w", err)
		}
	}

	cc := cliConfig{
		mode:       *mode,
		addr:       *addr,
		tls:        *useTLS,
		mux:        *useMux,
		serverName: *serverName,
		message:    *message,
		count:      *count,
		args:       flag.Args(),
	}
	applyEnvOverrides(&cc)
	if err := cc.validate(); err != nil {
		return err
	}

	opts, err := buildOptions(cc)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}
	rt, err := netpipe.New(opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *metrics != "" {
		if _, err := serveMetrics(ctx, rt.Bandwidth(), *metrics); err != nil {
			return err
		}
	}

	log.Info("启动", "version", netpipe.Version, "mode", cc.mode, "addr", cc.addr, "tls", cc.tls, "mux", cc.mux)
	return dispatch(ctx, rt, cc, os.Stdout)
}

// buildOptions 构建选项
//
// 配置优先级（从高到低）：命令行参数 → 预设 → 配置文件 → 默认值
func buildOptions(cc cliConfig) ([]netpipe.Option, error) {
	var opts []netpipe.Option
	if *configFile != "" {
		opts = append(opts, netpipe.WithConfigFile(*configFile))
	}
	if *preset != "" {
		opts = append(opts, netpipe.WithPreset(netpipe.Preset(*preset)))
	}
	if *insecure {
		opts = append(opts, netpipe.WithInsecureSkipVerify())
	}
	return opts, nil
}

func printVersion() {
	fmt.Println(netpipe.VersionInfo())
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("netpipe - 进程内双工管道与协议栈")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  netpipe -mode <模式> [选项] [vault 命令]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("vault-client 命令:")
	fmt.Println("  put <key> <value>   写入")
	fmt.Println("  get <key>           读取")
	fmt.Println("  del <key>           删除")
	fmt.Println("  ping                心跳")
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  NETPIPE_MODE        运行模式")
	fmt.Println("  NETPIPE_ADDR        监听或连接地址")
	fmt.Println("  NETPIPE_TLS         启用 TLS (true/false)")
	fmt.Println("  NETPIPE_MUX         启用 yamux (true/false)")
	fmt.Println("  NETPIPE_LOG_LEVEL   日志级别，如 pipe=debug,info")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  netpipe -mode echo-server -addr 127.0.0.1:9000 -tls")
	fmt.Println("  netpipe -mode echo-client -addr 127.0.0.1:9000 -tls -insecure -count 3")
	fmt.Println("  netpipe -mode vault-client -addr 127.0.0.1:9100 -mux put greeting hello")
	fmt.Println("  netpipe -mode echo-server -metrics 127.0.0.1:9090")
}
