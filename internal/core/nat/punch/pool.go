package punch

import (
	"net/netip"

	"github.com/dep2p/go-punchnet/pkg/types"
)

// pool 固定容量的连接槽位
//
// 槽位在构造时一次分配，之后只在空闲栈与 byPeer 之间转移。
type pool struct {
	slots  []Connection
	free   []int
	byPeer map[types.PeerID]int
}

func newPool(t *Transport, capacity int) *pool {
	p := &pool{
		slots:  make([]Connection, capacity),
		free:   make([]int, 0, capacity),
		byPeer: make(map[types.PeerID]int, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		p.slots[i] = Connection{t: t, slot: i}
		p.free = append(p.free, i)
	}
	return p
}

// acquire 取出空闲槽位并绑定对端，池空时返回 false
func (p *pool) acquire(peer types.PeerID, endpoint netip.AddrPort) (*Connection, bool) {
	if len(p.free) == 0 {
		return nil, false
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]

	c := &p.slots[idx]
	c.peer = peer
	c.endpoint = endpoint
	c.bound = true
	p.byPeer[peer] = idx
	return c, true
}

// lookup 按对端查找已绑定的连接
func (p *pool) lookup(peer types.PeerID) (*Connection, bool) {
	idx, ok := p.byPeer[peer]
	if !ok {
		return nil, false
	}
	return &p.slots[idx], true
}

// release 解绑并归还槽位
func (p *pool) release(peer types.PeerID) bool {
	idx, ok := p.byPeer[peer]
	if !ok {
		return false
	}
	delete(p.byPeer, peer)

	c := &p.slots[idx]
	c.bound = false
	c.peer = 0
	c.endpoint = netip.AddrPort{}
	p.free = append(p.free, idx)
	return true
}

// reset 归还全部槽位
func (p *pool) reset() {
	for peer := range p.byPeer {
		p.release(peer)
	}
}

func (p *pool) active() int {
	return len(p.byPeer)
}

func (p *pool) full() bool {
	return len(p.free) == 0
}

func (p *pool) capacity() int {
	return len(p.slots)
}
