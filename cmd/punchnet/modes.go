package main

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-punchnet"
	"github.com/dep2p/go-punchnet/config"
	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// stopTimeout 节点停止超时
const stopTimeout = 5 * time.Second

func stopNode(node *punchnet.Node) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := node.Stop(ctx); err != nil {
		log.Warn("停止节点失败", "err", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// host 模式
// ═══════════════════════════════════════════════════════════════════════════

// echoHandler 接受所有连接并原样回显数据
//
// 回调在节点驱动器协程上执行，可以直接使用连接发送。
type echoHandler struct{}

func (echoHandler) OnConnectRequest(payload []byte, remote netip.AddrPort) bool {
	log.Info("收到连接请求", "remote", remote, "payload", string(payload))
	return true
}

func (echoHandler) OnConnected(conn interfaces.Connection) {
	fmt.Printf("+ %s 已连接\n", conn.Endpoint())
}

func (echoHandler) OnDisconnected(conn interfaces.Connection, reason types.TransportDisconnectReason) {
	fmt.Printf("- %s 已断开 (%s)\n", conn.Endpoint(), reason)
}

func (echoHandler) OnReceive(conn interfaces.Connection, data []byte) {
	if err := conn.SendUserData(data, types.DeliveryReliableOrdered); err != nil {
		log.Warn("回显失败", "remote", conn.Endpoint(), "err", err)
	}
}

func (echoHandler) OnConnectFailed(types.ConnectFailedReason) {}

func runHost(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) error {
	node, err := startNode(ctx, cfg,
		punchnet.WithPeerHandler(echoHandler{}),
		punchnet.WithRegisterer(reg),
	)
	if err != nil {
		return err
	}
	defer stopNode(node)

	fmt.Printf("主机 %q 已在端口 %d 启动，中继 %s:%d\n",
		cfg.HostName, cfg.ListenPort, cfg.NAT.RelayAddress, cfg.NAT.RelayPort)
	if ep, err := node.PublicEndpoint(ctx); err == nil {
		fmt.Printf("公网端点: %s\n", ep)
	}
	fmt.Println("按 Ctrl+C 退出")

	<-ctx.Done()
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// join 模式
// ═══════════════════════════════════════════════════════════════════════════

// joinPayload 连接请求携带的数据
var joinPayload = []byte("join")

// joinHandler 连接后发送一条消息，收到回显即结束
type joinHandler struct {
	msg  []byte
	done chan error
}

func (h *joinHandler) finish(err error) {
	select {
	case h.done <- err:
	default:
	}
}

func (h *joinHandler) OnConnectRequest([]byte, netip.AddrPort) bool { return false }

func (h *joinHandler) OnConnected(conn interfaces.Connection) {
	fmt.Printf("已连接到 %s (MTU %d)\n", conn.Endpoint(), conn.MTU())
	if err := conn.SendUserData(h.msg, types.DeliveryReliableOrdered); err != nil {
		h.finish(fmt.Errorf("发送失败: %w", err))
	}
}

func (h *joinHandler) OnDisconnected(conn interfaces.Connection, reason types.TransportDisconnectReason) {
	h.finish(fmt.Errorf("连接已断开: %s", reason))
}

func (h *joinHandler) OnReceive(conn interfaces.Connection, data []byte) {
	fmt.Printf("收到 %s: %s\n", conn.Endpoint(), data)
	h.finish(nil)
}

func (h *joinHandler) OnConnectFailed(reason types.ConnectFailedReason) {
	h.finish(fmt.Errorf("连接失败: %s", reason))
}

func runJoin(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, addr string, port int, msg []byte) error {
	h := &joinHandler{msg: msg, done: make(chan error, 1)}
	cfg.Discovery.Enable = false

	node, err := startNode(ctx, cfg,
		punchnet.WithPeerHandler(h),
		punchnet.WithRegisterer(reg),
	)
	if err != nil {
		return err
	}
	defer stopNode(node)

	fmt.Printf("正在连接 %s:%d ...\n", addr, port)
	if err := node.Connect(ctx, addr, port, joinPayload); err != nil {
		return err
	}

	select {
	case err := <-h.done:
		return err
	case <-ctx.Done():
		return nil
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// discover 模式
// ═══════════════════════════════════════════════════════════════════════════

func printSessions(sessions []types.DiscoveredSession) {
	fmt.Printf("发现 %d 个会话\n", len(sessions))
	for _, s := range sessions {
		fmt.Printf("  %-20s %s\n", s.HostName, s.Endpoint)
	}
}

func runDiscover(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) error {
	cfg.Discovery.Enable = true

	node, err := startNode(ctx, cfg,
		punchnet.WithDiscoveryListener(interfaces.DiscoveryListenerFunc(printSessions)),
		punchnet.WithRegisterer(reg),
	)
	if err != nil {
		return err
	}
	defer stopNode(node)

	fmt.Printf("正在局域网中发现主机（端口 %d-%d），按 Ctrl+C 退出\n",
		cfg.Discovery.StartPort, cfg.Discovery.EndPort)
	<-ctx.Done()
	return nil
}
