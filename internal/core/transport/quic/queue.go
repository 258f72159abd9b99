package quic

import (
	"sync"

	"github.com/dep2p/go-punchnet/pkg/interfaces"
)

// eventQueue I/O 协程写入、轮询线程读取的事件队列
type eventQueue struct {
	mu    sync.Mutex
	items []interfaces.Event
	spare []interfaces.Event
}

func (q *eventQueue) push(ev interfaces.Event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()
}

// drain 交换缓冲区后在锁外交付
func (q *eventQueue) drain(fn func(interfaces.Event)) {
	q.mu.Lock()
	items := q.items
	q.items = q.spare[:0]
	q.mu.Unlock()

	for i := range items {
		fn(items[i])
		items[i] = interfaces.Event{}
	}

	q.mu.Lock()
	q.spare = items[:0]
	q.mu.Unlock()
}

func (q *eventQueue) reset() {
	q.mu.Lock()
	q.items = nil
	q.spare = nil
	q.mu.Unlock()
}
