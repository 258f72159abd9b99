package punch

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/dep2p/go-punchnet/internal/core/discovery/lan"
	"github.com/dep2p/go-punchnet/internal/core/metrics"
	"github.com/dep2p/go-punchnet/internal/core/nat/natpunch"
	"github.com/dep2p/go-punchnet/internal/core/nat/stun"
	"github.com/dep2p/go-punchnet/internal/util/addrutil"
	"github.com/dep2p/go-punchnet/internal/util/logger"
	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("nat.punch")

// ============================================================================
//                              状态
// ============================================================================

// State 客户端连接状态
type State int

const (
	// StateIdle 无连接尝试
	StateIdle State = iota
	// StatePunching 等待中继引荐
	StatePunching
	// StateConnecting 已向引擎发起连接
	StateConnecting
	// StateConnected 连接已建立
	StateConnected
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePunching:
		return "punching"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// pendingConnect 待完成的连接请求
type pendingConnect struct {
	address   string
	port      int
	target    netip.AddrPort
	payload   []byte
	noPayload bool
}

// ============================================================================
//                              Transport
// ============================================================================

// Transport 打洞传输
type Transport struct {
	role    types.Role
	config  Config
	engine  interfaces.Engine
	handler interfaces.PeerHandler
	metrics *metrics.Metrics
	localIP func() (netip.Addr, error)

	relay     netip.AddrPort
	punch     *natpunch.Module
	registrar *Registrar
	responder *lan.Responder

	stunServer netip.AddrPort
	prober     *stun.Prober

	pool       *pool
	state      State
	pending    *pendingConnect
	punching   bool
	punchStart time.Time

	recvBuf []byte
}

// Option 传输选项
type Option func(*Transport)

// WithMetrics 指定指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithLocalIP 指定本机地址来源（默认 addrutil.LocalIP）
func WithLocalIP(fn func() (netip.Addr, error)) Option {
	return func(t *Transport) {
		t.localIP = fn
	}
}

// New 创建打洞传输，连接池按 MaxPlayers 一次分配
func New(role types.Role, config Config, engine interfaces.Engine, handler interfaces.PeerHandler, opts ...Option) (*Transport, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	relayIP, err := netip.ParseAddr(config.RelayAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRelayAddress, config.RelayAddress)
	}

	t := &Transport{
		role:    role,
		config:  config,
		engine:  engine,
		handler: handler,
		localIP: addrutil.LocalIP,
		relay:   netip.AddrPortFrom(relayIP.Unmap(), uint16(config.RelayPort)),
		recvBuf: make([]byte, 1500),
	}
	for _, opt := range opts {
		opt(t)
	}

	if config.StunServer != "" {
		t.stunServer, err = stun.ResolveServer(config.StunServer)
		if err != nil {
			return nil, err
		}
		// 只有服务端需要公布公网端点
		if role == types.RoleServer {
			t.prober = stun.NewProber()
		}
	}

	t.pool = newPool(t, config.MaxPlayers)
	t.punch = natpunch.New(engine, t.localEndpoint)
	t.punch.Trust(t.relay)
	if role == types.RoleServer {
		t.responder = lan.NewResponder(config.DiscoverySecret, config.HostName)
	}
	return t, nil
}

// Role 传输角色
func (t *Transport) Role() types.Role {
	return t.role
}

// State 客户端连接状态
func (t *Transport) State() State {
	return t.state
}

// ActiveConnections 已绑定连接数
func (t *Transport) ActiveConnections() int {
	return t.pool.active()
}

// Capacity 连接池容量
func (t *Transport) Capacity() int {
	return t.pool.capacity()
}

// PublicEndpoint 经 STUN 探测到的公网端点
//
// 仅服务端探测，客户端总是返回 false。
func (t *Transport) PublicEndpoint() (netip.AddrPort, bool) {
	if t.prober == nil {
		return netip.AddrPort{}, false
	}
	return t.prober.Mapped()
}

// LocalPort 引擎绑定端口
func (t *Transport) LocalPort() int {
	return t.engine.LocalPort()
}

func (t *Transport) localEndpoint() netip.AddrPort {
	ip, err := t.localIP()
	if err != nil {
		return netip.AddrPort{}
	}
	return netip.AddrPortFrom(ip, uint16(t.engine.LocalPort()))
}

// ============================================================================
//                              生命周期
// ============================================================================

// Run 启动传输
//
// 客户端在随机端口启动引擎；服务端在 port 启动并立即向中继登记。
func (t *Transport) Run(port int, now time.Time) error {
	if t.role == types.RoleClient {
		if err := t.engine.Start(0); err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		log.Info("客户端已启动", "port", t.engine.LocalPort())
		return nil
	}

	if err := t.engine.Start(port); err != nil {
		return fmt.Errorf("start engine on port %d: %w", port, err)
	}

	log.Info("向中继登记", "relay", t.relay, "port", t.engine.LocalPort())
	t.registrar = NewRegistrar(t.engine, t.relay, t.config.NatPunchHeartbeat, t.engine.LocalPort, t.localIP)
	if err := t.registrar.Register(); err != nil {
		log.Warn("首次登记失败，将在心跳时重试", "err", err)
	} else {
		t.metrics.Registered()
	}
	t.registrar.ResetHeartbeat(now)
	t.probePublicEndpoint()
	return nil
}

// Shutdown 停止引擎并清空所有状态
func (t *Transport) Shutdown() error {
	t.registrar = nil
	t.clearPending()
	t.pool.reset()
	t.metrics.ConnectionsActive(0)
	return t.engine.Stop()
}

// ForceUpdate 立即刷新引擎待发送数据
func (t *Transport) ForceUpdate() {
	t.engine.ForceUpdate()
}

// Disconnect 断开连接，OnDisconnected 在引擎报告断开时触发
func (t *Transport) Disconnect(conn interfaces.Connection) {
	t.engine.Disconnect(conn.Peer())
}

// ============================================================================
//                              客户端连接
// ============================================================================

// Connect 连接到 address:port
//
// payload 为 nil 表示不携带连接数据。本机地址跳过打洞直接连接，
// 其余地址先请求中继引荐，NatPunchTimeout 内未成功则直接连接原地址。
func (t *Transport) Connect(address string, port int, payload []byte, now time.Time) error {
	if t.role != types.RoleClient {
		return ErrNotClient
	}
	if t.pending != nil {
		return ErrConnectInProgress
	}
	if len(payload) > MaxConnectPayload {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}
	target, ok := types.ResolveEndpoint(address, port)
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidAddress, types.EndpointToken(address, port))
	}

	t.pending = &pendingConnect{
		address:   address,
		port:      port,
		target:    target,
		payload:   append([]byte(nil), payload...),
		noPayload: payload == nil,
	}

	if !t.engine.IsRunning() {
		if err := t.engine.Start(0); err != nil {
			t.pending = nil
			return fmt.Errorf("start engine: %w", err)
		}
	}
	t.metrics.PunchStarted()

	if types.IsLocalhost(address) {
		log.Info("目标为本机地址，跳过打洞", "target", target)
		t.metrics.PunchResolved(metrics.OutcomeLocalhost)
		t.connectTo(target)
		return nil
	}

	token := types.EndpointToken(target.Addr().String(), port)
	t.punching = true
	t.punchStart = now
	t.state = StatePunching

	log.Info("请求中继引荐", "relay", t.relay, "token", token)
	if err := t.punch.SendIntroduceRequest(t.relay, token); err != nil {
		log.Warn("引荐请求发送失败，直接连接", "target", target, "err", err)
		t.fallback()
	}
	return nil
}

// connectTo 以挂起请求的连接数据向 target 发起连接
func (t *Transport) connectTo(target netip.AddrPort) {
	if t.pending == nil {
		return
	}

	var payload []byte
	if !t.pending.noPayload {
		payload = t.pending.payload
		if payload == nil {
			payload = []byte{}
		}
	}

	t.state = StateConnecting
	if err := t.engine.Connect(target, payload); err != nil {
		log.Warn("发起连接失败", "target", target, "err", err)
		t.fail(types.ConnectFailedRefused)
	}
}

// fallback 放弃打洞，直接连接原始地址
func (t *Transport) fallback() {
	t.punching = false
	t.metrics.PunchResolved(metrics.OutcomeTimeout)
	t.connectTo(t.pending.target)
}

func (t *Transport) fail(reason types.ConnectFailedReason) {
	t.clearPending()
	t.metrics.ConnectFailed(reason.String())
	t.handler.OnConnectFailed(reason)
}

func (t *Transport) clearPending() {
	t.pending = nil
	t.punching = false
	t.punchStart = time.Time{}
	t.state = StateIdle
}

// OnNatIntroductionSuccess 打洞成功，客户端立即连接命中的端点
func (t *Transport) OnNatIntroductionSuccess(target netip.AddrPort, addrType types.NatAddressType, token string) {
	if t.role != types.RoleClient {
		return
	}
	if !t.punching {
		log.Debug("忽略多余的打洞成功", "target", target, "type", addrType)
		return
	}

	log.Info("打洞成功，开始连接", "target", target, "type", addrType, "token", token)
	t.punching = false
	t.metrics.PunchResolved(metrics.OutcomeSuccess)
	t.connectTo(target)
}

// ============================================================================
//                              轮询
// ============================================================================

// Poll 处理引擎事件、打洞事件并推进计时器
func (t *Transport) Poll(now time.Time) {
	t.engine.PollEvents(t.dispatch)
	t.punch.PollEvents(t)

	switch t.role {
	case types.RoleServer:
		if t.registrar != nil && t.registrar.Poll(now) {
			t.metrics.Registered()
			if _, ok := t.PublicEndpoint(); !ok {
				t.probePublicEndpoint()
			}
		}
	case types.RoleClient:
		if t.punching && !now.Before(t.punchStart.Add(t.config.NatPunchTimeout)) {
			log.Warn("打洞超时，直接连接", "target", t.pending.target)
			t.fallback()
		}
	}
}

func (t *Transport) probePublicEndpoint() {
	if t.prober == nil {
		return
	}
	req, err := t.prober.Request()
	if err != nil {
		log.Debug("构造 STUN 请求失败", "err", err)
		return
	}
	if err := t.engine.SendUnconnected(req, t.stunServer); err != nil {
		log.Debug("发送 STUN 请求失败", "server", t.stunServer, "err", err)
	}
}

// dispatch 单一事件分发入口
func (t *Transport) dispatch(ev interfaces.Event) {
	switch ev.Kind {
	case interfaces.EventPeerConnected:
		t.onPeerConnected(ev)
	case interfaces.EventPeerDisconnected:
		t.onPeerDisconnected(ev)
	case interfaces.EventConnectionRequest:
		t.onConnectionRequest(ev)
	case interfaces.EventReceive:
		t.onReceive(ev)
	case interfaces.EventUnconnected:
		t.onUnconnected(ev)
	case interfaces.EventNetworkError:
		t.onNetworkError(ev)
	}
}

func (t *Transport) onConnectionRequest(ev interfaces.Event) {
	req := ev.Request
	if req == nil {
		return
	}
	if t.pool.full() {
		log.Debug("连接池已满，拒绝连接", "remote", req.Remote())
		req.Reject()
		return
	}

	data := req.Data()
	if len(data) > MaxConnectPayload {
		log.Debug("连接数据过大，拒绝连接", "remote", req.Remote(), "size", len(data))
		req.Reject()
		return
	}

	if t.handler.OnConnectRequest(data, req.Remote()) {
		req.Accept()
	} else {
		req.Reject()
	}
}

func (t *Transport) onPeerConnected(ev interfaces.Event) {
	conn, ok := t.pool.acquire(ev.Peer, ev.Remote)
	if !ok {
		log.Warn("连接池已空，断开对端", "peer", ev.Peer, "remote", ev.Remote)
		t.engine.Disconnect(ev.Peer)
		return
	}

	if t.role == types.RoleClient {
		t.pending = nil
		t.state = StateConnected
	}
	t.metrics.ConnectionsActive(t.pool.active())

	log.Info("连接已建立", "peer", ev.Peer, "remote", ev.Remote)
	t.handler.OnConnected(conn)
}

func (t *Transport) onPeerDisconnected(ev interfaces.Event) {
	var (
		conn  *Connection
		known bool
	)
	if ev.HasPeer {
		conn, known = t.pool.lookup(ev.Peer)
	}

	// 客户端尚未建立的连接：映射为连接失败
	if t.role == types.RoleClient && !known {
		switch {
		case ev.Reason == types.DisconnectConnectionRejected:
			t.fail(types.ConnectFailedRefused)
		case ev.Reason == types.DisconnectConnectionFailed || ev.Reason == types.DisconnectTimeout:
			t.fail(types.ConnectFailedTimeout)
		case !ev.HasPeer:
			log.Warn("连接失败", "reason", ev.Reason)
			t.fail(types.ConnectFailedRefused)
		}
		return
	}
	if !known {
		return
	}

	reason := types.TransportDisconnectShutdown
	if ev.Reason == types.DisconnectTimeout {
		reason = types.TransportDisconnectTimeout
	}

	log.Info("连接已断开", "peer", ev.Peer, "reason", ev.Reason)
	t.handler.OnDisconnected(conn, reason)
	t.pool.release(ev.Peer)
	t.metrics.ConnectionsActive(t.pool.active())

	if t.role == types.RoleClient && t.pool.active() == 0 {
		t.state = StateIdle
	}
}

func (t *Transport) onReceive(ev interfaces.Event) {
	conn, ok := t.pool.lookup(ev.Peer)
	if !ok {
		return
	}
	if len(ev.Data) > len(t.recvBuf) {
		t.recvBuf = make([]byte, len(ev.Data))
	}
	n := copy(t.recvBuf, ev.Data)
	t.handler.OnReceive(conn, t.recvBuf[:n])
}

func (t *Transport) onUnconnected(ev interfaces.Event) {
	if stun.IsMessage(ev.Data) {
		if t.prober != nil {
			t.prober.Handle(ev.Data)
		}
		return
	}
	if t.punch.Handle(ev.Data, ev.Remote) {
		return
	}
	if t.responder != nil {
		if reply, ok := t.responder.Reply(ev.Data); ok {
			if err := t.engine.SendUnconnected(reply, ev.Remote); err != nil {
				log.Debug("发现应答发送失败", "to", ev.Remote, "err", err)
			}
			return
		}
	}
	log.Debug("忽略无连接数据报", "from", ev.Remote, "size", len(ev.Data))
}

func (t *Transport) onNetworkError(ev interfaces.Event) {
	log.Warn("网络错误", "remote", ev.Remote, "err", ev.Err)

	if t.role == types.RoleClient && t.pending != nil && t.pool.active() == 0 {
		t.fail(types.ConnectFailedRefused)
	}
}
