package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-punchnet/internal/core/metrics"
	"github.com/dep2p/go-punchnet/internal/core/nat/natproto"
	"github.com/dep2p/go-punchnet/internal/core/wire"
	"github.com/dep2p/go-punchnet/internal/util/logger"
)

var log = logger.Logger("relay.server")

// maxDatagramSize 读缓冲大小
const maxDatagramSize = 1500

// ============================================================================
//                              主机条目
// ============================================================================

// Host 已登记的主机
type Host struct {
	// ID 登记标识，同一主机刷新时保持不变
	ID uuid.UUID

	// Internal 主机上报的内网端点
	Internal netip.AddrPort

	// External 中继观察到的公网端点
	External netip.AddrPort

	// Registered 最近一次登记时间
	Registered time.Time
}

// ============================================================================
//                              Server
// ============================================================================

// Server 会合中继
type Server struct {
	config  Config
	metrics *metrics.Metrics

	// hosts 以 External 与 Internal 的字符串形式为键，两个键指向同一条目
	hosts *expirable.LRU[string, *Host]

	mu     sync.Mutex
	conn   net.PacketConn
	closed bool
}

// Option 服务端选项
type Option func(*Server)

// WithMetrics 指定指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New 创建中继
func New(config Config, opts ...Option) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{config: config}
	for _, opt := range opts {
		opt(s)
	}

	// 每台主机占两个键
	s.hosts = expirable.NewLRU[string, *Host](config.MaxHosts*2, nil, config.EntryTTL)
	return s, nil
}

// Listen 绑定 UDP 地址
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrServerClosed
	}
	if s.conn != nil {
		return nil
	}

	conn, err := net.ListenPacket("udp", s.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.ListenAddr, err)
	}
	s.conn = conn
	log.Info("中继已监听", "addr", conn.LocalAddr())
	return nil
}

// Addr 实际监听地址，未监听时返回 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve 处理数据报直到 ctx 取消，未监听时先调用 Listen
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.Close()
	})
	g.Go(func() error {
		return s.readLoop(conn)
	})

	err := g.Wait()
	if errors.Is(err, ErrServerClosed) {
		return nil
	}
	return err
}

// Close 关闭套接字
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Server) readLoop(conn net.PacketConn) error {
	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ErrServerClosed
			}
			return fmt.Errorf("read: %w", err)
		}

		from, ok := toAddrPort(addr)
		if !ok {
			continue
		}
		s.handle(buf[:n], from, time.Now())
	}
}

// Hosts 当前登记的主机数
func (s *Server) Hosts() int {
	seen := make(map[uuid.UUID]struct{})
	for _, h := range s.hosts.Values() {
		seen[h.ID] = struct{}{}
	}
	return len(seen)
}

// Lookup 按令牌查找主机
func (s *Server) Lookup(token string) (*Host, bool) {
	return s.hosts.Get(token)
}

// ============================================================================
//                              消息处理
// ============================================================================

func (s *Server) handle(data []byte, from netip.AddrPort, now time.Time) {
	kind, ok := wire.KindOf(data)
	if !ok {
		log.Debug("丢弃未知数据报", "from", from, "size", len(data))
		return
	}

	switch kind {
	case wire.KindNatRegister:
		s.handleRegister(data, from, now)
	case wire.KindNatIntroduceRequest:
		s.handleIntroduceRequest(data, from)
	default:
		log.Debug("忽略非中继消息", "from", from, "kind", kind)
	}
}

func (s *Server) handleRegister(data []byte, from netip.AddrPort, now time.Time) {
	pkt, err := natproto.UnmarshalRegister(data)
	if err != nil {
		log.Debug("登记包解码失败", "from", from, "err", err)
		return
	}

	externalKey := from.String()
	internalKey := pkt.Internal.String()

	host, ok := s.hosts.Peek(externalKey)
	if !ok || host.Internal != pkt.Internal {
		host = &Host{ID: uuid.New(), Internal: pkt.Internal, External: from}
		log.Info("主机已登记", "id", host.ID, "internal", host.Internal, "external", host.External)
	}
	host.Registered = now

	s.hosts.Add(externalKey, host)
	if internalKey != externalKey {
		s.hosts.Add(internalKey, host)
	}

	s.metrics.RelayRegistration()
	s.metrics.RelayHosts(s.Hosts())
}

func (s *Server) handleIntroduceRequest(data []byte, from netip.AddrPort) {
	req, err := natproto.UnmarshalIntroduceRequest(data)
	if err != nil {
		log.Debug("引荐请求解码失败", "from", from, "err", err)
		s.metrics.RelayIntroduction(metrics.ResultInvalid)
		return
	}

	host, ok := s.hosts.Get(req.Token)
	if !ok {
		log.Debug("未知主机", "token", req.Token, "from", from)
		s.metrics.RelayIntroduction(metrics.ResultUnknown)
		return
	}

	toHost := &natproto.Introduce{Internal: req.Internal, External: from, Token: req.Token}
	toClient := &natproto.Introduce{Internal: host.Internal, External: host.External, Token: req.Token}

	if err := s.send(toHost.Marshal(), host.External); err != nil {
		log.Warn("引荐发送失败", "to", host.External, "err", err)
	}
	if err := s.send(toClient.Marshal(), from); err != nil {
		log.Warn("引荐发送失败", "to", from, "err", err)
	}

	log.Info("已引荐", "host", host.ID, "client", from, "token", req.Token)
	s.metrics.RelayIntroduction(metrics.ResultIntroduced)
}

func (s *Server) send(data []byte, to netip.AddrPort) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotListening
	}
	_, err := conn.WriteTo(data, net.UDPAddrFromAddrPort(to))
	return err
}

func toAddrPort(addr net.Addr) (netip.AddrPort, bool) {
	ua, ok := addr.(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}, false
	}
	ap := ua.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), true
}
