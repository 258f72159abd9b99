package punchnet

import (
	"context"
	"fmt"
	"net/netip"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-punchnet/config"
	"github.com/dep2p/go-punchnet/internal/core/discovery/lan"
	"github.com/dep2p/go-punchnet/internal/core/nat/punch"
	"github.com/dep2p/go-punchnet/internal/core/pump"
	"github.com/dep2p/go-punchnet/internal/util/logger"
	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

var log = logger.Logger("punchnet")

// 启动超时
const initializeTimeout = 30 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              节点
// ════════════════════════════════════════════════════════════════════════════

// Node punchnet 节点
//
// Node 是门面，聚合发现服务、打洞传输与投递引擎，并持有驱动它们的协程。
// 除 Start/Stop 外，访问内部组件的方法都排入驱动器执行。
type Node struct {
	cfg *config.Config
	app *fx.App

	// 由 fx 注入
	engine    interfaces.Engine
	transport *punch.Transport
	discovery *lan.Service
	pump      *pump.Pump

	// mu 串行化 Start/Stop；running 与 closed 可在回调中无锁读取
	mu      sync.Mutex
	running atomic.Bool
	closed  atomic.Bool

	mapMu  sync.RWMutex
	mapped netip.AddrPort
}

// New 创建节点
//
// 配置在此验证，组件在此构建；网络在 Start 时才打开。
func New(cfg *config.Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	if err := config.ValidateForRole(cfg); err != nil {
		return nil, err
	}

	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	n := &Node{cfg: cfg}
	n.app = buildFxApp(cfg, o, n)
	if err := n.app.Err(); err != nil {
		return nil, fmt.Errorf("build node: %w", err)
	}
	return n, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              生命周期
// ════════════════════════════════════════════════════════════════════════════

// Start 启动节点
//
// 依次启动引擎（服务端同时登记中继）、发现服务、端口映射与驱动器。
func (n *Node) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed.Load() {
		return ErrNodeClosed
	}
	if n.running.Load() {
		return ErrAlreadyStarted
	}

	startCtx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	if err := n.app.Start(startCtx); err != nil {
		log.Error("节点启动失败", "err", err)
		return fmt.Errorf("start node: %w", err)
	}
	n.running.Store(true)

	log.Info("节点已启动", "role", n.Role(), "port", n.engine.LocalPort())
	return nil
}

// Stop 停止节点
//
// 先停止驱动器，再关闭发现服务与引擎。停止后不能再次启动。
// 可以在 PeerHandler 回调中调用：此时不等待驱动协程退出，当前一轮结束后驱动器即停止。
func (n *Node) Stop(ctx context.Context) error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.running.Swap(false) {
		return nil
	}

	if err := n.app.Stop(ctx); err != nil {
		log.Warn("节点停止时出错", "err", err)
		return fmt.Errorf("stop node: %w", err)
	}
	log.Info("节点已停止")
	return nil
}

// IsRunning 节点是否运行中
func (n *Node) IsRunning() bool {
	return n.running.Load()
}

// ════════════════════════════════════════════════════════════════════════════
//                              访问器
// ════════════════════════════════════════════════════════════════════════════

// Role 节点角色
func (n *Node) Role() types.Role {
	return n.cfg.ParsedRole()
}

// Config 节点配置
func (n *Node) Config() *config.Config {
	return n.cfg
}

// Transport 打洞传输
//
// 传输是单线程状态机，只能在 Do 回调或 PeerHandler 回调中使用。
func (n *Node) Transport() *punch.Transport {
	return n.transport
}

// Discovery 发现服务，服务端或未启用发现时为 nil
//
// 与 Transport 相同，只能在驱动器协程上使用。
func (n *Node) Discovery() *lan.Service {
	return n.discovery
}

// ════════════════════════════════════════════════════════════════════════════
//                              驱动器上的操作
// ════════════════════════════════════════════════════════════════════════════

// Do 在驱动器协程上执行 fn 并等待其返回
//
// 在 PeerHandler 或 DiscoveryListener 回调中调用时直接执行。
// ctx 结束时 fn 若尚未开始则不再执行。
func (n *Node) Do(ctx context.Context, fn func(now time.Time) error) error {
	if !n.IsRunning() {
		if n.closed.Load() {
			return ErrNodeClosed
		}
		return ErrNotStarted
	}
	err := n.pump.Do(ctx, fn)
	if errors.Is(err, pump.ErrStopped) {
		return ErrNodeClosed
	}
	return err
}

// Connect 连接到 address:port（仅客户端）
//
// 返回 nil 只表示连接已发起，结果经 OnConnected 或 OnConnectFailed 报告。
// payload 为 nil 表示不携带连接数据。
func (n *Node) Connect(ctx context.Context, address string, port int, payload []byte) error {
	return n.Do(ctx, func(now time.Time) error {
		return n.transport.Connect(address, port, payload, now)
	})
}

// Disconnect 断开连接
func (n *Node) Disconnect(ctx context.Context, conn interfaces.Connection) error {
	return n.Do(ctx, func(time.Time) error {
		n.transport.Disconnect(conn)
		return nil
	})
}

// Sessions 返回当前发现的会话快照
func (n *Node) Sessions(ctx context.Context) ([]types.DiscoveredSession, error) {
	if n.discovery == nil {
		return nil, ErrDiscoveryDisabled
	}
	var sessions []types.DiscoveredSession
	err := n.Do(ctx, func(time.Time) error {
		sessions = n.discovery.Sessions()
		return nil
	})
	return sessions, err
}

// ActiveConnections 当前活动连接数
func (n *Node) ActiveConnections(ctx context.Context) (int, error) {
	var active int
	err := n.Do(ctx, func(time.Time) error {
		active = n.transport.ActiveConnections()
		return nil
	})
	return active, err
}

// PublicEndpoint 返回公网端点
//
// 端口映射成功时返回网关端点，否则返回 STUN 探测结果。两者都只在服务端可用。
func (n *Node) PublicEndpoint(ctx context.Context) (netip.AddrPort, error) {
	n.mapMu.RLock()
	mapped := n.mapped
	n.mapMu.RUnlock()
	if mapped.IsValid() {
		return mapped, nil
	}

	var (
		ep netip.AddrPort
		ok bool
	)
	if err := n.Do(ctx, func(time.Time) error {
		ep, ok = n.transport.PublicEndpoint()
		return nil
	}); err != nil {
		return netip.AddrPort{}, err
	}
	if !ok {
		return netip.AddrPort{}, ErrNoPublicEndpoint
	}
	return ep, nil
}

func (n *Node) setMapped(ep netip.AddrPort) {
	n.mapMu.Lock()
	n.mapped = ep
	n.mapMu.Unlock()
}

// ════════════════════════════════════════════════════════════════════════════
//                              默认处理者
// ════════════════════════════════════════════════════════════════════════════

// nopHandler 拒绝所有连接请求，忽略其余事件
type nopHandler struct{}

func (nopHandler) OnConnectRequest([]byte, netip.AddrPort) bool { return false }

func (nopHandler) OnConnected(interfaces.Connection) {}

func (nopHandler) OnDisconnected(interfaces.Connection, types.TransportDisconnectReason) {}

func (nopHandler) OnReceive(interfaces.Connection, []byte) {}

func (nopHandler) OnConnectFailed(types.ConnectFailedReason) {}
