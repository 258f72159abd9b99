package punchnet

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-punchnet/config"
	"github.com/dep2p/go-punchnet/internal/core/discovery/lan"
	"github.com/dep2p/go-punchnet/internal/core/nat/punch"
	"github.com/dep2p/go-punchnet/internal/core/nat/stun"
	"github.com/dep2p/go-punchnet/pkg/types"
	"github.com/dep2p/go-punchnet/tests/mocks"
)

type nodeFixture struct {
	node     *Node
	engine   *mocks.MockEngine
	handler  *mocks.MockPeerHandler
	listener *mocks.MockDiscoveryListener
	socket   *mocks.MockSocket
	clock    *clock.Mock
}

func newNodeFixture(t *testing.T, cfg *config.Config, extra ...Option) *nodeFixture {
	t.Helper()

	f := &nodeFixture{
		engine:   mocks.NewMockEngine(),
		handler:  mocks.NewMockPeerHandler(),
		listener: &mocks.MockDiscoveryListener{},
		socket:   &mocks.MockSocket{},
		clock:    clock.NewMock(),
	}
	opts := append([]Option{
		WithEngine(f.engine),
		WithPeerHandler(f.handler),
		WithDiscoveryListener(f.listener),
		WithDiscoverySocket(f.socket),
		WithClock(f.clock),
	}, extra...)

	n, err := New(cfg, opts...)
	require.NoError(t, err)
	f.node = n
	t.Cleanup(func() {
		_ = n.Stop(context.Background())
	})
	return f
}

func clientConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Role = "client"
	cfg.NAT.RelayAddress = "198.51.100.1"
	return cfg
}

func serverConfig() *config.Config {
	cfg := clientConfig()
	cfg.Role = "server"
	return cfg
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// ============================================================================
//                              构造
// ============================================================================

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := clientConfig()
	cfg.MaxPlayers = 0

	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNew_InvalidStunServer(t *testing.T) {
	cfg := serverConfig()
	cfg.NAT.StunServer = "127.0.0.1:99999"

	_, err := New(cfg, WithEngine(mocks.NewMockEngine()))
	assert.ErrorIs(t, err, stun.ErrInvalidServer)
}

func TestNew_DiscoveryOnlyForClient(t *testing.T) {
	client := newNodeFixture(t, clientConfig())
	assert.NotNil(t, client.node.Discovery())

	server := newNodeFixture(t, serverConfig())
	assert.Nil(t, server.node.Discovery())

	cfg := clientConfig()
	cfg.Discovery.Enable = false
	disabled := newNodeFixture(t, cfg)
	assert.Nil(t, disabled.node.Discovery())
}

// ============================================================================
//                              生命周期
// ============================================================================

func TestNode_ClientLifecycle(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)

	require.NoError(t, f.node.Start(ctx))
	assert.True(t, f.node.IsRunning())
	assert.Equal(t, []int{0}, f.engine.StartCalls, "客户端在随机端口启动")
	assert.True(t, f.socket.Opened)

	assert.ErrorIs(t, f.node.Start(ctx), ErrAlreadyStarted)

	require.NoError(t, f.node.Stop(ctx))
	assert.False(t, f.node.IsRunning())
	assert.Equal(t, 1, f.engine.StopCalls)
	assert.False(t, f.socket.Opened)

	assert.ErrorIs(t, f.node.Start(ctx), ErrNodeClosed)
	assert.NoError(t, f.node.Stop(ctx), "重复停止无副作用")
}

func TestNode_ServerStartsOnListenPort(t *testing.T) {
	cfg := serverConfig()
	cfg.ListenPort = 7788
	f := newNodeFixture(t, cfg)
	ctx := testCtx(t)

	require.NoError(t, f.node.Start(ctx))
	assert.Equal(t, []int{7788}, f.engine.StartCalls)
	assert.Equal(t, types.RoleServer, f.node.Role())

	err := f.node.Connect(ctx, "203.0.113.5", 7777, nil)
	assert.ErrorIs(t, err, punch.ErrNotClient)
}

func TestNode_StartFailure(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	f.engine.StartFunc = func(int) error { return assert.AnError }

	err := f.node.Start(testCtx(t))
	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, f.node.IsRunning())
}

func TestNode_OperationsRequireStart(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)

	assert.ErrorIs(t, f.node.Connect(ctx, "127.0.0.1", 7777, nil), ErrNotStarted)
	_, err := f.node.Sessions(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = f.node.ActiveConnections(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
}

// ============================================================================
//                              连接
// ============================================================================

func TestNode_ConnectLocalhostDialsDirectly(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	payload := []byte("join")
	require.NoError(t, f.node.Connect(ctx, "127.0.0.1", 7777, payload))

	require.Len(t, f.engine.ConnectCalls, 1)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:7777"), f.engine.ConnectCalls[0].Remote)
	assert.Equal(t, payload, f.engine.ConnectCalls[0].Payload)

	err := f.node.Connect(ctx, "127.0.0.1", 7777, nil)
	assert.ErrorIs(t, err, punch.ErrConnectInProgress)
}

func TestNode_ConnectRemoteRequestsIntroduction(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	require.NoError(t, f.node.Connect(ctx, "203.0.113.5", 7777, nil))

	assert.Empty(t, f.engine.ConnectCalls, "打洞期间不直接连接")
	relay := netip.MustParseAddrPort("198.51.100.1:6000")
	assert.Len(t, f.engine.UnconnectedTo(relay), 1, "向中继发送引荐请求")
}

func TestNode_ActiveConnections(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	n, err := f.node.ActiveConnections(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNode_HandlerCallsBackIntoNode(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	f.engine.ConnectFunc = func(netip.AddrPort, []byte) error {
		if len(f.engine.ConnectCalls) == 1 {
			return assert.AnError
		}
		return nil
	}

	var (
		retried  bool
		retryErr error
	)
	f.handler.OnConnectFailedFunc = func(types.ConnectFailedReason) {
		if retried {
			return
		}
		retried = true
		// 回调运行在驱动协程上，重连不能再排队等待
		retryErr = f.node.Connect(context.Background(), "127.0.0.1", 7778, nil)
	}

	start := time.Now()
	require.NoError(t, f.node.Connect(ctx, "127.0.0.1", 7777, nil))
	assert.Less(t, time.Since(start), time.Second, "回调中的调用不应阻塞驱动器")

	assert.NoError(t, retryErr)
	assert.Equal(t, []types.ConnectFailedReason{types.ConnectFailedRefused}, f.handler.ConnectFailedCalls)
	require.Len(t, f.engine.ConnectCalls, 2)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:7778"), f.engine.ConnectCalls[1].Remote)

	n, err := f.node.ActiveConnections(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNode_StopFromHandler(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	f.engine.ConnectFunc = func(netip.AddrPort, []byte) error { return assert.AnError }

	var stopErr error
	f.handler.OnConnectFailedFunc = func(types.ConnectFailedReason) {
		stopErr = f.node.Stop(context.Background())
	}

	start := time.Now()
	require.NoError(t, f.node.Connect(ctx, "127.0.0.1", 7777, nil))
	assert.Less(t, time.Since(start), time.Second)

	assert.NoError(t, stopErr)
	assert.False(t, f.node.IsRunning())
	assert.Equal(t, 1, f.engine.StopCalls)
	assert.False(t, f.socket.Opened)

	assert.ErrorIs(t, f.node.Connect(ctx, "127.0.0.1", 7777, nil), ErrNodeClosed)
}

func TestNode_OperationsAfterStop(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))
	require.NoError(t, f.node.Stop(ctx))

	err := f.node.Do(context.Background(), func(time.Time) error { return nil })
	assert.ErrorIs(t, err, ErrNodeClosed)
	_, err = f.node.Sessions(ctx)
	assert.ErrorIs(t, err, ErrNodeClosed)
}

func TestNode_CancelledConnectIsNotApplied(t *testing.T) {
	f := newNodeFixture(t, clientConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	// 占住驱动器，让后续请求在队列中等待
	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = f.node.Do(ctx, func(time.Time) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	cancelled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := f.node.Connect(cancelled, "127.0.0.1", 7777, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)

	// 被取消的连接不留下挂起请求
	require.NoError(t, f.node.Connect(ctx, "127.0.0.1", 7777, nil))
	assert.Len(t, f.engine.ConnectCalls, 1)
}

// ============================================================================
//                              发现
// ============================================================================

func TestNode_Sessions(t *testing.T) {
	cfg := clientConfig()
	f := newNodeFixture(t, cfg)
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	host := netip.MustParseAddrPort("192.168.1.20:7777")
	require.NoError(t, f.node.Do(ctx, func(now time.Time) error {
		f.socket.Deliver(lan.EncodeReply(cfg.Discovery.Secret, "alpha"), host)
		f.node.Discovery().Poll(now)
		return nil
	}))

	sessions, err := f.node.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "alpha", sessions[0].HostName)
	assert.Equal(t, host, sessions[0].Endpoint)

	require.NotEmpty(t, f.listener.Updates)
	assert.Len(t, f.listener.Last(), 1)
}

func TestNode_SessionsDisabled(t *testing.T) {
	f := newNodeFixture(t, serverConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	_, err := f.node.Sessions(ctx)
	assert.ErrorIs(t, err, ErrDiscoveryDisabled)
}

// ============================================================================
//                              公网端点与指标
// ============================================================================

func TestNode_PublicEndpointUnknown(t *testing.T) {
	f := newNodeFixture(t, serverConfig())
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	_, err := f.node.PublicEndpoint(ctx)
	assert.ErrorIs(t, err, ErrNoPublicEndpoint)

	mapped := netip.MustParseAddrPort("203.0.113.9:40000")
	f.node.setMapped(mapped)
	ep, err := f.node.PublicEndpoint(ctx)
	require.NoError(t, err)
	assert.Equal(t, mapped, ep)
}

func TestNode_WithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := newNodeFixture(t, clientConfig(), WithRegisterer(reg))
	ctx := testCtx(t)
	require.NoError(t, f.node.Start(ctx))

	require.NoError(t, f.node.Do(ctx, func(now time.Time) error {
		f.node.Discovery().Poll(now)
		return nil
	}))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["punchnet_discovery_probes_sent_total"])
}

func TestConfigConversion(t *testing.T) {
	cfg := clientConfig()
	cfg.MaxPlayers = 4
	cfg.HostName = "room"
	cfg.NAT.PunchTimeout = config.Duration(2 * time.Second)
	cfg.Discovery.StartPort = 7000
	cfg.Discovery.EndPort = 7002

	pc := punchConfig(cfg)
	assert.Equal(t, 4, pc.MaxPlayers)
	assert.Equal(t, "room", pc.HostName)
	assert.Equal(t, 2*time.Second, pc.NatPunchTimeout)
	assert.Equal(t, "198.51.100.1", pc.RelayAddress)

	lc := lanConfig(cfg)
	assert.Equal(t, 7000, lc.StartPort)
	assert.Equal(t, 7002, lc.EndPort)
	assert.Equal(t, cfg.Discovery.Secret, lc.Secret)

	qc := quicConfig(cfg)
	assert.Equal(t, cfg.Transport.MaxDatagramSize, qc.MaxDatagramSize)
	assert.NoError(t, qc.Validate())
}
