// Package main 提供独立的会合中继
//
// 主机周期性地向中继登记自己的内网端点，中继同时记录观察到的公网端点；
// 客户端按主机端点请求引荐，中继把双方的端点分别下发给对方，双方随即打洞。
// 中继只转发登记与引荐，不转发任何业务数据。
//
// 使用方法:
//
//	go run ./cmd/relay-server -listen :6000 -metrics :9101
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-punchnet/internal/core/metrics"
	"github.com/dep2p/go-punchnet/internal/core/relay/server"
	"github.com/dep2p/go-punchnet/internal/util/logger"
)

var log = logger.Logger("cmd.relay")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	listen := flag.String("listen", server.DefaultListenAddr, "UDP 监听地址")
	ttl := flag.Duration("ttl", server.DefaultEntryTTL, "主机登记有效期")
	maxHosts := flag.Int("max-hosts", server.DefaultMaxHosts, "最多记录的主机数")
	metricsAddr := flag.String("metrics", "", "prometheus 指标监听地址，如 :9101")
	statsInterval := flag.Duration("stats", 30*time.Second, "统计输出间隔（0 = 关闭）")
	logLevel := flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	flag.Parse()

	if *logLevel != "" {
		level, ok := logger.ParseLevel(*logLevel)
		if !ok {
			return fmt.Errorf("未知日志级别 %q", *logLevel)
		}
		logger.SetGlobalLevel(level)
	}

	reg := prometheus.NewRegistry()
	srv, err := server.New(server.Config{
		ListenAddr: *listen,
		EntryTTL:   *ttl,
		MaxHosts:   *maxHosts,
	}, server.WithMetrics(metrics.New(reg)))
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	fmt.Printf("会合中继已监听 %s，按 Ctrl+C 停止\n", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if *metricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, *metricsAddr, reg)
		})
	}
	if *statsInterval > 0 {
		g.Go(func() error {
			reportStats(ctx, srv, *statsInterval)
			return nil
		})
	}

	err = g.Wait()
	fmt.Println("\n会合中继已停止")
	return err
}

// reportStats 定期输出已登记主机数
func reportStats(ctx context.Context, srv *server.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info("中继统计", "hosts", srv.Hosts())
		}
	}
}

// serveMetrics 在 addr 上提供 /metrics，ctx 结束时关闭
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	hs := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	log.Info("指标服务已启动", "addr", addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
