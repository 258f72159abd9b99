package lan

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/dep2p/go-punchnet/internal/core/metrics"
	"github.com/dep2p/go-punchnet/internal/util/logger"
	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("discovery.lan")

// ErrNilListener 未提供监听者
var ErrNilListener = errors.New("lan: nil listener")

// ============================================================================
//                              发现服务
// ============================================================================

// Service 局域网发现服务
type Service struct {
	config   Config
	socket   Socket
	listener interfaces.DiscoveryListener
	metrics  *metrics.Metrics

	sessions []types.DiscoveredSession
	changed  bool
	running  bool

	lastProbe time.Time
	lastPrune time.Time
	probe     []byte
}

// Option 发现服务选项
type Option func(*Service)

// WithSocket 指定套接字（默认 UDPSocket）
func WithSocket(s Socket) Option {
	return func(svc *Service) {
		svc.socket = s
	}
}

// WithMetrics 指定指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *Service) {
		svc.metrics = m
	}
}

// New 创建发现服务
func New(config Config, listener interfaces.DiscoveryListener, opts ...Option) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if listener == nil {
		return nil, ErrNilListener
	}

	s := &Service{
		config:   config,
		listener: listener,
		probe:    EncodeProbe(config.Secret),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.socket == nil {
		s.socket = NewUDPSocket(config.broadcastAddr())
	}
	return s, nil
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 打开套接字，首次 Poll 会立即探测和清理
func (s *Service) Start() error {
	if s.running {
		return nil
	}
	if err := s.socket.Open(); err != nil {
		return fmt.Errorf("open discovery socket: %w", err)
	}

	s.lastProbe = time.Time{}
	s.lastPrune = time.Time{}
	s.running = true

	log.Info("局域网发现已启动",
		"ports", fmt.Sprintf("%d-%d", s.config.StartPort, s.config.EndPort),
		"interval", s.config.ProbeInterval)
	return nil
}

// Stop 关闭套接字，已发现的会话保留
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}
	s.running = false

	if err := s.socket.Close(); err != nil {
		return fmt.Errorf("close discovery socket: %w", err)
	}
	log.Info("局域网发现已停止")
	return nil
}

// IsRunning 是否运行中
func (s *Service) IsRunning() bool {
	return s.running
}

// ============================================================================
//                              轮询
// ============================================================================

// Poll 驱动一次更新，未运行时不做任何事
func (s *Service) Poll(now time.Time) {
	if !s.running {
		return
	}

	s.socket.Drain(func(data []byte, from netip.AddrPort) {
		s.handleReply(data, from, now)
	})

	if !now.Before(s.lastPrune.Add(s.config.PruneInterval)) {
		s.lastPrune = now
		s.prune(now)
	}

	if !now.Before(s.lastProbe.Add(s.config.ProbeInterval)) {
		s.lastProbe = now
		s.sendProbes()
	}

	if s.changed {
		s.changed = false
		s.metrics.SessionsChanged(len(s.sessions))
		s.listener.OnDiscoveredSessionsUpdated(s.Sessions())
	}
}

// Sessions 返回当前会话快照
func (s *Service) Sessions() []types.DiscoveredSession {
	out := make([]types.DiscoveredSession, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Service) handleReply(data []byte, from netip.AddrPort, now time.Time) {
	host, reason := decodeReply(data, s.config.Secret)
	if reason != dropNone {
		s.metrics.DatagramDropped(string(reason))
		return
	}
	s.addOrUpdate(types.DiscoveredSession{HostName: host, Endpoint: from, LastSeen: now})
}

// addOrUpdate 已存在则刷新时间戳（不算变化），否则追加并标记变化
func (s *Service) addOrUpdate(session types.DiscoveredSession) {
	key := session.Key()
	for i := range s.sessions {
		if s.sessions[i].Key() == key {
			s.sessions[i].LastSeen = session.LastSeen
			return
		}
	}

	s.sessions = append(s.sessions, session)
	s.changed = true
	log.Debug("发现新会话", "host", session.HostName, "endpoint", session.Endpoint)
}

// prune 逆序移除过期会话
func (s *Service) prune(now time.Time) {
	for i := len(s.sessions) - 1; i >= 0; i-- {
		if !s.sessions[i].Expired(now, s.config.SessionLifetime) {
			continue
		}
		log.Debug("会话已过期", "host", s.sessions[i].HostName, "endpoint", s.sessions[i].Endpoint)
		s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
		s.changed = true
	}
}

func (s *Service) sendProbes() {
	for port := s.config.StartPort; port <= s.config.EndPort; port++ {
		if err := s.socket.Broadcast(s.probe, port); err != nil {
			log.Debug("发送探测失败", "port", port, "err", err)
			continue
		}
		s.metrics.ProbeSent()
	}
}
