package lan

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
)

const (
	// maxDatagramSize 单个发现数据报最大字节数
	maxDatagramSize = 1500

	// maxQueuedDatagrams 两次 Poll 之间最多缓存的数据报
	maxQueuedDatagrams = 256
)

// ErrSocketClosed 套接字未打开
var ErrSocketClosed = errors.New("lan: socket closed")

// Socket 发现服务使用的数据报套接字
type Socket interface {
	// Open 打开套接字
	Open() error

	// Close 关闭套接字
	Close() error

	// Broadcast 向广播地址的指定端口发送
	Broadcast(data []byte, port int) error

	// Drain 非阻塞地交付所有已收到的数据报
	Drain(fn func(data []byte, from netip.AddrPort))
}

type datagram struct {
	data []byte
	from netip.AddrPort
}

// UDPSocket 基于 UDPv4 的 Socket 实现
//
// 读协程把数据报放入有界队列，队列满时丢弃新数据报。
type UDPSocket struct {
	broadcast netip.Addr

	mu      sync.Mutex
	conn    *net.UDPConn
	queue   []datagram
	spare   []datagram
	dropped int

	wg sync.WaitGroup
}

// NewUDPSocket 创建 UDPSocket
func NewUDPSocket(broadcast netip.Addr) *UDPSocket {
	return &UDPSocket{broadcast: broadcast}
}

// Open 绑定随机端口并开启 SO_BROADCAST
func (s *UDPSocket) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	pc, err := lc.ListenPacket(context.Background(), "udp4", ":0")
	if err != nil {
		return err
	}
	s.conn = pc.(*net.UDPConn)

	s.wg.Add(1)
	go s.readLoop(s.conn)
	return nil
}

// Close 关闭套接字并等待读协程退出
func (s *UDPSocket) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.queue = s.queue[:0]
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	err := conn.Close()
	s.wg.Wait()
	return err
}

// LocalPort 返回绑定端口
func (s *UDPSocket) LocalPort() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return 0
	}
	return s.conn.LocalAddr().(*net.UDPAddr).Port
}

// Broadcast 发送到 broadcast:port
func (s *UDPSocket) Broadcast(data []byte, port int) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrSocketClosed
	}
	_, err := conn.WriteToUDPAddrPort(data, netip.AddrPortFrom(s.broadcast, uint16(port)))
	return err
}

// Drain 交付并清空队列
func (s *UDPSocket) Drain(fn func(data []byte, from netip.AddrPort)) {
	s.mu.Lock()
	batch := s.queue
	s.queue = s.spare[:0]
	dropped := s.dropped
	s.dropped = 0
	s.mu.Unlock()

	if dropped > 0 {
		log.Debug("发现队列已满，丢弃数据报", "count", dropped)
	}
	for _, d := range batch {
		fn(d.data, d.from)
	}

	s.mu.Lock()
	s.spare = batch[:0]
	s.mu.Unlock()
}

func (s *UDPSocket) readLoop(conn *net.UDPConn) {
	defer s.wg.Done()

	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Debug("读取发现数据报失败", "err", err)
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		s.mu.Lock()
		if len(s.queue) < maxQueuedDatagrams {
			s.queue = append(s.queue, datagram{data: data, from: netip.AddrPortFrom(from.Addr().Unmap(), from.Port())})
		} else {
			s.dropped++
		}
		s.mu.Unlock()
	}
}
