// Package main 提供 punchnet 命令行入口
//
// 三种模式：
//
//	punchnet host     以服务端角色运行，登记中继并回显收到的数据
//	punchnet join     以客户端角色连接到主机，发送一条消息后等待回显
//	punchnet discover 以客户端角色在局域网中发现主机
//
// 示例：
//
//	punchnet host -port 7777 -relay 203.0.113.10
//	punchnet join -relay 203.0.113.10 -addr 198.51.100.7 -port 7777 -msg hello
//	punchnet discover -secret 5555
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-punchnet"
	"github.com/dep2p/go-punchnet/config"
	"github.com/dep2p/go-punchnet/internal/util/logger"
)

var log = logger.Logger("cmd.punchnet")

// 运行模式
const (
	modeHost     = "host"
	modeJoin     = "join"
	modeDiscover = "discover"
)

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
// 配置优先级（从高到低）：命令行参数 > PUNCHNET_* 环境变量 > 配置文件 > 默认值
type cliFlags struct {
	configFile string
	port       int
	relay      string
	relayPort  int
	secret     int
	hostName   string
	maxPlayers int
	stun       string
	portMap    string
	metrics    string
	logLevel   string

	// join 模式
	addr string
	msg  string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("缺少运行模式")
	}
	mode := args[0]
	switch mode {
	case modeHost, modeJoin, modeDiscover:
	case "-h", "-help", "--help", "help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("未知运行模式 %q", mode)
	}

	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	var f cliFlags
	fs.StringVar(&f.configFile, "config", "", "配置文件路径（JSON）")
	fs.IntVar(&f.port, "port", config.DefaultListenPort, "host: 监听端口；join: 主机端口")
	fs.StringVar(&f.relay, "relay", "", "中继地址（IP）")
	fs.IntVar(&f.relayPort, "relay-port", 0, "中继端口")
	fs.IntVar(&f.secret, "secret", 0, "局域网发现密钥")
	fs.StringVar(&f.hostName, "name", "", "host: 发现应答中的主机名")
	fs.IntVar(&f.maxPlayers, "max-players", 0, "host: 最大连接数")
	fs.StringVar(&f.stun, "stun", "", "host: STUN 服务器 host:port")
	fs.StringVar(&f.portMap, "portmap", "", "host: 端口映射方式 (natpmp/upnp)")
	fs.StringVar(&f.metrics, "metrics", "", "prometheus 指标监听地址，如 :9100")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
	fs.StringVar(&f.addr, "addr", "", "join: 主机地址")
	fs.StringVar(&f.msg, "msg", "hello", "join: 连接后发送的消息")
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	if f.logLevel != "" {
		level, ok := logger.ParseLevel(f.logLevel)
		if !ok {
			return fmt.Errorf("未知日志级别 %q", f.logLevel)
		}
		logger.SetGlobalLevel(level)
	}

	cfg, err := buildConfig(mode, fs, &f)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	g, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics.ListenAddr, reg)
		})
	}
	g.Go(func() error {
		// 模式结束后关闭指标服务
		defer cancel()
		switch mode {
		case modeHost:
			return runHost(ctx, cfg, reg)
		case modeJoin:
			return runJoin(ctx, cfg, reg, f.addr, f.port, []byte(f.msg))
		default:
			return runDiscover(ctx, cfg, reg)
		}
	})
	return g.Wait()
}

// buildConfig 依次应用配置文件、环境变量与命令行参数
func buildConfig(mode string, fs *flag.FlagSet, f *cliFlags) (*config.Config, error) {
	cfg := config.NewConfig()
	if f.configFile != "" {
		var err error
		cfg, err = config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
	}
	config.ApplyEnv(cfg, os.LookupEnv)

	set := make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { set[fl.Name] = true })

	if mode == modeHost {
		cfg.Role = "server"
		if set["port"] {
			cfg.ListenPort = f.port
		}
	} else {
		cfg.Role = "client"
	}
	if mode == modeJoin && f.addr == "" {
		return nil, errors.New("join 模式需要 -addr")
	}

	if set["relay"] {
		cfg.NAT.RelayAddress = f.relay
	}
	if set["relay-port"] {
		cfg.NAT.RelayPort = f.relayPort
	}
	if set["secret"] {
		cfg.Discovery.Secret = int32(f.secret) //nolint:gosec // G115: 密钥按 int32 传输
	}
	if set["name"] {
		cfg.HostName = f.hostName
	}
	if set["max-players"] {
		cfg.MaxPlayers = f.maxPlayers
	}
	if set["stun"] {
		cfg.NAT.StunServer = f.stun
	}
	if set["portmap"] {
		cfg.NAT.PortMapping = f.portMap
	}
	if set["metrics"] {
		cfg.Metrics.ListenAddr = f.metrics
	}

	if err := config.ValidateForRole(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// startNode 创建并启动节点
func startNode(ctx context.Context, cfg *config.Config, opts ...punchnet.Option) (*punchnet.Node, error) {
	node, err := punchnet.New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := node.Start(ctx); err != nil {
		return nil, err
	}
	return node, nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "用法: punchnet <host|join|discover> [参数]")
	fmt.Fprintln(os.Stderr, "运行 punchnet <模式> -h 查看各模式参数")
}
