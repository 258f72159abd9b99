package punchnet

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-punchnet/internal/core/discovery/lan"
	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	handler    interfaces.PeerHandler
	listener   interfaces.DiscoveryListener
	registerer prometheus.Registerer
	clock      clock.Clock
	engine     interfaces.Engine
	socket     lan.Socket
}

func newOptions() *options {
	return &options{
		handler:  nopHandler{},
		listener: interfaces.DiscoveryListenerFunc(func([]types.DiscoveredSession) {}),
	}
}

// WithPeerHandler 设置连接事件处理者
//
// 未设置时拒绝所有连接请求并忽略其余事件。
func WithPeerHandler(h interfaces.PeerHandler) Option {
	return func(o *options) error {
		if h != nil {
			o.handler = h
		}
		return nil
	}
}

// WithDiscoveryListener 设置发现会话监听者
func WithDiscoveryListener(l interfaces.DiscoveryListener) Option {
	return func(o *options) error {
		if l != nil {
			o.listener = l
		}
		return nil
	}
}

// WithRegisterer 启用 prometheus 指标并注册到 reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.registerer = reg
		return nil
	}
}

// WithClock 设置驱动器时钟（测试中使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithEngine 替换默认的 QUIC 投递引擎
func WithEngine(e interfaces.Engine) Option {
	return func(o *options) error {
		o.engine = e
		return nil
	}
}

// WithDiscoverySocket 替换发现服务的广播套接字
func WithDiscoverySocket(s lan.Socket) Option {
	return func(o *options) error {
		o.socket = s
		return nil
	}
}
