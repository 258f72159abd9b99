package punchnet

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dep2p/go-punchnet/config"
	"github.com/dep2p/go-punchnet/internal/core/discovery/lan"
	"github.com/dep2p/go-punchnet/internal/core/metrics"
	"github.com/dep2p/go-punchnet/internal/core/nat/portmap"
	"github.com/dep2p/go-punchnet/internal/core/nat/punch"
	"github.com/dep2p/go-punchnet/internal/core/pump"
	"github.com/dep2p/go-punchnet/internal/core/transport/quic"
	"github.com/dep2p/go-punchnet/pkg/interfaces"
	"github.com/dep2p/go-punchnet/pkg/types"
)

// portMapTimeout 网关请求超时
const portMapTimeout = 5 * time.Second

// ════════════════════════════════════════════════════════════════════════════
// Fx 应用构建
// ════════════════════════════════════════════════════════════════════════════

// buildFxApp 构建 Fx 应用
//
// 组件依赖顺序：config → metrics → engine → transport → discovery → pump
func buildFxApp(cfg *config.Config, opts *options, node *Node) *fx.App {
	return fx.New(
		fx.Supply(cfg),
		fx.Provide(
			func() clock.Clock { return opts.clock },
			func() interfaces.PeerHandler { return opts.handler },
			func() interfaces.DiscoveryListener { return opts.listener },
			func() *metrics.Metrics { return provideMetrics(opts) },
			func() (interfaces.Engine, error) { return provideEngine(cfg, opts) },
			provideTransport,
			func(m *metrics.Metrics, l interfaces.DiscoveryListener) (*lan.Service, error) {
				return provideDiscovery(cfg, opts, m, l)
			},
			providePump,
		),

		// 生命周期：先启动网络，再启动驱动器；停止顺序相反
		fx.Invoke(registerNetwork),
		fx.Invoke(registerPortMapping(node)),
		fx.Invoke(registerPump),
		fx.Invoke(injectNodeComponents(node)),

		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)
}

// nodeInjectParams Node 组件注入参数
type nodeInjectParams struct {
	fx.In

	Engine    interfaces.Engine
	Transport *punch.Transport
	Pump      *pump.Pump

	// 服务端或未启用发现时为 nil
	Discovery *lan.Service `optional:"true"`
}

// injectNodeComponents 创建 Node 组件注入函数
func injectNodeComponents(node *Node) interface{} {
	return func(params nodeInjectParams) {
		node.engine = params.Engine
		node.transport = params.Transport
		node.pump = params.Pump
		node.discovery = params.Discovery
	}
}

// ════════════════════════════════════════════════════════════════════════════
// 组件提供函数
// ════════════════════════════════════════════════════════════════════════════

func provideMetrics(opts *options) *metrics.Metrics {
	if opts.registerer == nil {
		return nil
	}
	return metrics.New(opts.registerer)
}

func provideEngine(cfg *config.Config, opts *options) (interfaces.Engine, error) {
	if opts.engine != nil {
		return opts.engine, nil
	}
	e, err := quic.New(quicConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}
	return e, nil
}

// transportParams 打洞传输依赖参数
type transportParams struct {
	fx.In

	Config  *config.Config
	Engine  interfaces.Engine
	Handler interfaces.PeerHandler
	Metrics *metrics.Metrics
}

func provideTransport(p transportParams) (*punch.Transport, error) {
	t, err := punch.New(p.Config.ParsedRole(), punchConfig(p.Config), p.Engine, p.Handler,
		punch.WithMetrics(p.Metrics))
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}
	return t, nil
}

// provideDiscovery 仅客户端且启用发现时创建发现服务
func provideDiscovery(cfg *config.Config, opts *options, m *metrics.Metrics, l interfaces.DiscoveryListener) (*lan.Service, error) {
	if cfg.ParsedRole() != types.RoleClient || !cfg.Discovery.Enable {
		return nil, nil
	}

	lanOpts := []lan.Option{lan.WithMetrics(m)}
	if opts.socket != nil {
		lanOpts = append(lanOpts, lan.WithSocket(opts.socket))
	}
	s, err := lan.New(lanConfig(cfg), l, lanOpts...)
	if err != nil {
		return nil, fmt.Errorf("create discovery: %w", err)
	}
	return s, nil
}

// pumpParams 驱动器依赖参数
type pumpParams struct {
	fx.In

	Config    *config.Config
	Clock     clock.Clock
	Transport *punch.Transport
	Discovery *lan.Service `optional:"true"`
}

// providePump 创建驱动器，传输先于发现轮询
func providePump(p pumpParams) *pump.Pump {
	pm := pump.New(p.Clock, p.Config.Transport.UpdateInterval.Duration())
	pm.Add(p.Transport)
	if p.Discovery != nil {
		pm.Add(p.Discovery)
	}
	return pm
}

// ════════════════════════════════════════════════════════════════════════════
// 生命周期钩子
// ════════════════════════════════════════════════════════════════════════════

// networkParams 网络生命周期参数
type networkParams struct {
	fx.In

	LC        fx.Lifecycle
	Config    *config.Config
	Pump      *pump.Pump
	Transport *punch.Transport
	Discovery *lan.Service `optional:"true"`
}

// registerNetwork 启动传输与发现
//
// 钩子在驱动器启动前、停止后执行，因此可以直接调用单线程组件。
func registerNetwork(p networkParams) {
	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := p.Transport.Run(p.Config.ListenPort, p.Pump.Clock().Now()); err != nil {
				return err
			}
			if p.Discovery != nil {
				if err := p.Discovery.Start(); err != nil {
					return multierr.Append(err, p.Transport.Shutdown())
				}
			}
			return nil
		},
		OnStop: func(context.Context) error {
			var err error
			if p.Discovery != nil {
				err = multierr.Append(err, p.Discovery.Stop())
			}
			return multierr.Append(err, p.Transport.Shutdown())
		},
	})
}

// registerPortMapping 服务端按配置在网关上映射监听端口
//
// 映射失败只记录日志，打洞仍可工作。
func registerPortMapping(node *Node) interface{} {
	return func(lc fx.Lifecycle, cfg *config.Config, t *punch.Transport) error {
		if cfg.ParsedRole() != types.RoleServer || cfg.NAT.PortMapping == config.PortMappingNone {
			return nil
		}
		mapper, err := portmap.New(cfg.NAT.PortMapping, portMapTimeout)
		if err != nil {
			return err
		}

		var mapped bool
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				ctx, cancel := context.WithTimeout(ctx, portMapTimeout)
				defer cancel()

				external, err := mapper.Map(ctx, t.LocalPort(), portmap.DefaultLifetime)
				if err != nil {
					log.Warn("端口映射失败", "mapper", mapper.Name(), "err", err)
					return nil
				}
				mapped = true
				node.setMapped(external)
				log.Info("端口映射成功", "mapper", mapper.Name(), "external", external)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				if !mapped {
					return nil
				}
				mapped = false
				node.setMapped(netip.AddrPort{})
				return mapper.Unmap(ctx)
			},
		})
		return nil
	}
}

// registerPump 启动驱动器协程
func registerPump(lc fx.Lifecycle, pm *pump.Pump) {
	var (
		cancel context.CancelFunc
		done   chan error
	)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan error, 1)
			go func() {
				done <- pm.Run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			// 在回调中停止：驱动协程就是当前协程，本轮结束后 Run 返回
			if pm.InLoop() {
				return nil
			}
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

// ════════════════════════════════════════════════════════════════════════════
// 配置转换函数
// ════════════════════════════════════════════════════════════════════════════

// quicConfig 从统一配置创建引擎配置
func quicConfig(cfg *config.Config) quic.Config {
	return quic.Config{
		DisconnectTimeout:  cfg.Transport.DisconnectTimeout.Duration(),
		ReconnectInterval:  cfg.Transport.ReconnectInterval.Duration(),
		MaxConnectAttempts: cfg.Transport.MaxConnectAttempts,
		MaxDatagramSize:    cfg.Transport.MaxDatagramSize,
	}
}

// punchConfig 从统一配置创建打洞传输配置
func punchConfig(cfg *config.Config) punch.Config {
	return punch.Config{
		MaxPlayers:        cfg.MaxPlayers,
		RelayAddress:      cfg.NAT.RelayAddress,
		RelayPort:         cfg.NAT.RelayPort,
		NatPunchHeartbeat: cfg.NAT.PunchHeartbeat.Duration(),
		NatPunchTimeout:   cfg.NAT.PunchTimeout.Duration(),
		DiscoverySecret:   cfg.Discovery.Secret,
		HostName:          cfg.HostName,
		StunServer:        cfg.NAT.StunServer,
	}
}

// lanConfig 从统一配置创建发现服务配置
func lanConfig(cfg *config.Config) lan.Config {
	c := lan.DefaultConfig()
	c.Secret = cfg.Discovery.Secret
	c.StartPort = cfg.Discovery.StartPort
	c.EndPort = cfg.Discovery.EndPort
	c.ProbeInterval = cfg.Discovery.ProbeInterval.Duration()
	c.PruneInterval = cfg.Discovery.PruneInterval.Duration()
	c.SessionLifetime = cfg.Discovery.SessionLifetime.Duration()
	return c
}
