package quic

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"go.uber.org/multierr"

	"github.com/dep2p/go-punchnet/internal/util/logger"
	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

var log = logger.Logger("transport.quic")

// 确保实现了接口
var _ interfaces.Engine = (*Engine)(nil)

// Engine QUIC 投递引擎
//
// 监听、拨号与无连接数据报共用一个 UDP 套接字：
// 打洞时对端看到的必须是与中继登记时相同的本地端口。
type Engine struct {
	config    Config
	quicConf  *quic.Config
	serverTLS *tls.Config
	clientTLS *tls.Config

	mu       sync.Mutex
	running  bool
	udpConn  *net.UDPConn
	qt       *quic.Transport
	listener *quic.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	peers  map[types.PeerID]*peer
	nextID types.PeerID

	events eventQueue
}

// New 创建引擎
func New(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	serverTLS, clientTLS, err := newTLSConfig()
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:    config,
		quicConf:  config.quicConfig(),
		serverTLS: serverTLS,
		clientTLS: clientTLS,
		peers:     make(map[types.PeerID]*peer),
	}, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 在 port 上启动（0 表示随机端口）
func (e *Engine) Start(port int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyRunning
	}

	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return fmt.Errorf("listen udp: %w", err)
	}

	qt := &quic.Transport{Conn: udpConn}
	listener, err := qt.Listen(e.serverTLS, e.quicConf)
	if err != nil {
		_ = qt.Close()
		_ = udpConn.Close()
		return fmt.Errorf("listen: %w", err)
	}

	e.udpConn = udpConn
	e.qt = qt
	e.listener = listener
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.running = true

	e.wg.Add(2)
	go e.acceptLoop(e.ctx, listener)
	go e.unconnectedLoop(e.ctx, qt)

	log.Info("引擎已启动", "addr", udpConn.LocalAddr())
	return nil
}

// Stop 关闭所有连接并释放套接字
func (e *Engine) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.cancel()

	peers := make([]*peer, 0, len(e.peers))
	for _, p := range e.peers {
		peers = append(peers, p)
	}
	e.peers = make(map[types.PeerID]*peer)

	listener, qt, udpConn := e.listener, e.qt, e.udpConn
	e.listener, e.qt, e.udpConn = nil, nil, nil
	e.mu.Unlock()

	for _, p := range peers {
		_ = p.conn.CloseWithError(codeNormal, "shutdown")
	}

	var errs []error
	if err := listener.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := qt.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := udpConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, err)
	}

	e.wg.Wait()
	e.events.reset()

	log.Info("引擎已停止")
	return multierr.Combine(errs...)
}

// IsRunning 是否已启动
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// LocalPort 实际绑定的端口
func (e *Engine) LocalPort() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.udpConn == nil {
		return 0
	}
	return e.udpConn.LocalAddr().(*net.UDPAddr).Port
}

// ============================================================================
//                              连接
// ============================================================================

// Connect 异步拨号，结果以事件报告
func (e *Engine) Connect(remote netip.AddrPort, payload []byte) error {
	if !remote.IsValid() {
		return ErrInvalidAddress
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	ctx, qt := e.ctx, e.qt
	e.wg.Add(1)
	e.mu.Unlock()

	if payload != nil {
		payload = append([]byte{}, payload...)
	}
	go e.dial(ctx, qt, remote, payload)
	return nil
}

func (e *Engine) dial(ctx context.Context, qt *quic.Transport, remote netip.AddrPort, payload []byte) {
	defer e.wg.Done()

	fail := func(reason types.DisconnectReason, err error) {
		log.Debug("连接失败", "remote", remote, "reason", reason, "err", err)
		e.events.push(interfaces.Event{Kind: interfaces.EventPeerDisconnected, Remote: remote, Reason: reason})
	}

	dialCtx, cancel := context.WithTimeout(ctx, e.config.HandshakeTimeout())
	defer cancel()

	conn, err := qt.Dial(dialCtx, net.UDPAddrFromAddrPort(remote), e.clientTLS, e.quicConf)
	if err != nil {
		fail(dialReason(err), err)
		return
	}

	stream, err := conn.OpenStreamSync(dialCtx)
	if err != nil {
		_ = conn.CloseWithError(codeNormal, "")
		fail(dialReason(err), err)
		return
	}
	if err := writeHello(stream, payload); err != nil {
		_ = conn.CloseWithError(codeNormal, "")
		fail(dialReason(err), err)
		return
	}

	var ack [1]byte
	_ = stream.SetReadDeadline(time.Now().Add(e.config.HandshakeTimeout()))
	if _, err := stream.Read(ack[:]); err != nil || ack[0] != acceptByte {
		_ = conn.CloseWithError(codeNormal, "")
		if err == nil {
			fail(types.DisconnectInvalidProtocol, nil)
			return
		}
		fail(dialReason(err), err)
		return
	}
	_ = stream.SetReadDeadline(time.Time{})

	e.addPeer(conn, stream, remote)
}

func (e *Engine) acceptLoop(ctx context.Context, listener *quic.Listener) {
	defer e.wg.Done()

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Debug("accept 结束", "err", err)
			}
			return
		}

		e.wg.Add(1)
		go e.handleIncoming(ctx, conn)
	}
}

// handleIncoming 读取握手并排入连接请求
func (e *Engine) handleIncoming(ctx context.Context, conn *quic.Conn) {
	defer e.wg.Done()

	remote := toAddrPort(conn.RemoteAddr())
	hsCtx, cancel := context.WithTimeout(ctx, e.config.HandshakeTimeout())
	defer cancel()

	stream, err := conn.AcceptStream(hsCtx)
	if err != nil {
		log.Debug("等待控制流失败", "remote", remote, "err", err)
		_ = conn.CloseWithError(codeNormal, "")
		return
	}

	_ = stream.SetReadDeadline(time.Now().Add(e.config.HandshakeTimeout()))
	data, err := readHello(stream)
	if err != nil {
		log.Debug("读取握手失败", "remote", remote, "err", err)
		_ = conn.CloseWithError(codeNormal, "")
		return
	}
	_ = stream.SetReadDeadline(time.Time{})

	e.events.push(interfaces.Event{
		Kind:   interfaces.EventConnectionRequest,
		Remote: remote,
		Request: &request{
			engine: e,
			conn:   conn,
			stream: stream,
			data:   data,
			remote: remote,
		},
	})
}

// addPeer 登记已建立的连接并启动读取协程
func (e *Engine) addPeer(conn *quic.Conn, stream *quic.Stream, remote netip.AddrPort) {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		_ = conn.CloseWithError(codeNormal, "shutdown")
		return
	}
	e.nextID++
	p := &peer{id: e.nextID, conn: conn, stream: stream, remote: remote}
	e.peers[p.id] = p
	e.wg.Add(2)
	e.mu.Unlock()

	log.Debug("连接已建立", "peer", p.id, "remote", remote)
	e.events.push(interfaces.Event{Kind: interfaces.EventPeerConnected, Peer: p.id, HasPeer: true, Remote: remote})

	go func() {
		defer e.wg.Done()
		p.readLoop(e)
	}()
	go func() {
		defer e.wg.Done()
		p.datagramLoop(e)
	}()
}

// peerClosed 移除对端并报告一次断开
func (e *Engine) peerClosed(p *peer, reason types.DisconnectReason) {
	p.closeOnce.Do(func() {
		e.mu.Lock()
		_, known := e.peers[p.id]
		delete(e.peers, p.id)
		e.mu.Unlock()

		_ = p.conn.CloseWithError(codeNormal, "")
		if !known {
			return
		}

		log.Debug("连接已断开", "peer", p.id, "reason", reason)
		e.events.push(interfaces.Event{
			Kind:    interfaces.EventPeerDisconnected,
			Peer:    p.id,
			HasPeer: true,
			Remote:  p.remote,
			Reason:  reason,
		})
	})
}

// Disconnect 断开对端，断开事件在读取协程退出时报告
func (e *Engine) Disconnect(id types.PeerID) {
	p, ok := e.lookup(id)
	if !ok {
		return
	}
	_ = p.conn.CloseWithError(codeNormal, "disconnect")
}

func (e *Engine) lookup(id types.PeerID) (*peer, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.peers[id]
	return p, ok
}

// ============================================================================
//                              数据
// ============================================================================

// Send 发送数据
func (e *Engine) Send(id types.PeerID, data []byte, method types.DeliveryMethod) error {
	p, ok := e.lookup(id)
	if !ok {
		return ErrUnknownPeer
	}

	if method == types.DeliveryUnreliable {
		if len(data) > e.config.MaxDatagramSize {
			return fmt.Errorf("%w: %d > %d", ErrDatagramTooLarge, len(data), e.config.MaxDatagramSize)
		}
		return p.conn.SendDatagram(data)
	}
	return p.sendReliable(data)
}

// SendUnconnected 经共享套接字发送无连接数据报
func (e *Engine) SendUnconnected(data []byte, to netip.AddrPort) error {
	e.mu.Lock()
	qt := e.qt
	e.mu.Unlock()

	if qt == nil {
		return ErrNotRunning
	}
	_, err := qt.WriteTo(data, net.UDPAddrFromAddrPort(to))
	return err
}

func (e *Engine) unconnectedLoop(ctx context.Context, qt *quic.Transport) {
	defer e.wg.Done()

	buf := make([]byte, 2048)
	for {
		n, addr, err := qt.ReadNonQUICPacket(ctx, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, quic.ErrTransportClosed) || errors.Is(err, net.ErrClosed) {
				return
			}
			e.events.push(interfaces.Event{Kind: interfaces.EventNetworkError, Err: err})
			return
		}

		e.events.push(interfaces.Event{
			Kind:   interfaces.EventUnconnected,
			Remote: toAddrPort(addr),
			Data:   append([]byte(nil), buf[:n]...),
		})
	}
}

// MTU 单个不可靠数据报最大载荷
func (e *Engine) MTU(types.PeerID) int {
	return e.config.MaxDatagramSize
}

// PollEvents 在调用方协程交付排队事件
func (e *Engine) PollEvents(fn func(interfaces.Event)) {
	e.events.drain(fn)
}

// ForceUpdate quic-go 自行调度发送，无需刷新
func (e *Engine) ForceUpdate() {}
