// Package pump 把时钟节拍转换为 Poll(now) 调用
//
// 发现服务与打洞传输都是单线程状态机，只能在同一个协程上被驱动。
// Pump 就是这个协程：按固定间隔依次调用各 Poller，
// 其他协程的操作通过 Post 排入队列，在下一轮轮询之前执行。
package pump

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-punchnet/internal/util/logger"
)

var log = logger.Logger("pump")

// DefaultInterval 默认轮询间隔
const DefaultInterval = 15 * time.Millisecond

// Poller 轮询驱动的状态机
type Poller interface {
	Poll(now time.Time)
}

// PollerFunc 函数形式的 Poller
type PollerFunc func(now time.Time)

// Poll 实现 Poller
func (f PollerFunc) Poll(now time.Time) {
	f(now)
}

// ErrStopped 驱动器已停止，排入的操作不会再执行
var ErrStopped = errors.New("pump: stopped")

// 排队操作的状态
const (
	taskPending int32 = iota
	taskClaimed
	taskCancelled
)

// task 排队的操作
//
// state 由 runPosted 与等待方竞争：先把 pending 改掉的一方决定操作是否执行。
type task struct {
	run   func(now time.Time)
	abort func()
	state atomic.Int32
}

// Pump 轮询驱动器
type Pump struct {
	clock    clock.Clock
	interval time.Duration

	mu      sync.Mutex
	pollers []Poller
	posted  []*task
	closed  bool
	wake    chan struct{}

	// owner 正在执行轮询的协程 ID，0 表示没有
	owner atomic.Int64
}

// New 创建驱动器，clk 为 nil 时使用系统时钟
func New(clk clock.Clock, interval time.Duration) *Pump {
	if clk == nil {
		clk = clock.New()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pump{
		clock:    clk,
		interval: interval,
		wake:     make(chan struct{}, 1),
	}
}

// Clock 驱动器使用的时钟
func (p *Pump) Clock() clock.Clock {
	return p.clock
}

// Add 追加 Poller，按添加顺序轮询
func (p *Pump) Add(pl Poller) {
	p.mu.Lock()
	p.pollers = append(p.pollers, pl)
	p.mu.Unlock()
}

// InLoop 当前协程是否就是驱动协程（Poller 或排队操作内部）
func (p *Pump) InLoop() bool {
	owner := p.owner.Load()
	return owner != 0 && owner == goroutineID()
}

// Post 排入一个在驱动协程上执行的操作
func (p *Pump) Post(fn func(now time.Time)) error {
	return p.post(&task{run: fn})
}

func (p *Pump) post(t *task) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrStopped
	}
	p.posted = append(p.posted, t)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Do 在驱动协程上执行 fn 并等待其结果
//
// 在驱动协程上调用时直接执行。ctx 先结束且 fn 尚未开始时，fn 不再执行。
func (p *Pump) Do(ctx context.Context, fn func(now time.Time) error) error {
	if p.InLoop() {
		return fn(p.clock.Now())
	}

	done := make(chan error, 1)
	t := &task{
		run:   func(now time.Time) { done <- fn(now) },
		abort: func() { done <- ErrStopped },
	}
	if err := p.post(t); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if t.state.CompareAndSwap(taskPending, taskCancelled) {
			return ctx.Err()
		}
		// 已开始执行，等待结果
		return <-done
	}
}

// Run 驱动轮询直到 ctx 取消
//
// 返回后驱动器关闭：之后的 Post/Do 返回 ErrStopped，尚未执行的操作被放弃。
func (p *Pump) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrStopped
	}
	p.mu.Unlock()

	release := p.enter()
	defer release()

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()
	defer p.close()

	log.Debug("驱动器已启动", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			log.Debug("驱动器已停止")
			return nil
		case <-p.wake:
			p.runPosted(p.clock.Now())
		case <-ticker.C:
			p.Step(p.clock.Now())
		}
	}
}

// Step 执行一轮：先执行排队的操作，再依次轮询
//
// 不可与 Run 并发调用。
func (p *Pump) Step(now time.Time) {
	release := p.enter()
	defer release()

	p.runPosted(now)

	p.mu.Lock()
	pollers := p.pollers
	p.mu.Unlock()

	for _, pl := range pollers {
		pl.Poll(now)
	}
}

// enter 把当前协程登记为驱动协程，返回恢复函数
func (p *Pump) enter() func() {
	prev := p.owner.Swap(goroutineID())
	return func() { p.owner.Store(prev) }
}

func (p *Pump) runPosted(now time.Time) {
	p.mu.Lock()
	posted := p.posted
	p.posted = nil
	p.mu.Unlock()

	for _, t := range posted {
		if !t.state.CompareAndSwap(taskPending, taskClaimed) {
			continue
		}
		t.run(now)
	}
}

// close 关闭驱动器并放弃尚未执行的操作
func (p *Pump) close() {
	p.mu.Lock()
	p.closed = true
	posted := p.posted
	p.posted = nil
	p.mu.Unlock()

	for _, t := range posted {
		if t.abort != nil && t.state.CompareAndSwap(taskPending, taskClaimed) {
			t.abort()
		}
	}
	if len(posted) > 0 {
		log.Debug("放弃排队的操作", "count", len(posted))
	}
}
