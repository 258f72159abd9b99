package portmap

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	"github.com/huin/goupnp/dcps/internetgateway2"

	"github.com/dep2p/go-punchnet/internal/util/addrutil"
)

const mappingDescription = "punchnet"

// igdClient WANIPConnection 服务中用到的方法（IGDv1/v2 通用）
type igdClient interface {
	GetExternalIPAddressCtx(ctx context.Context) (NewExternalIPAddress string, err error)
	AddPortMappingCtx(ctx context.Context, NewRemoteHost string, NewExternalPort uint16, NewProtocol string, NewInternalPort uint16, NewInternalClient string, NewEnabled bool, NewPortMappingDescription string, NewLeaseDuration uint32) error
	DeletePortMappingCtx(ctx context.Context, NewRemoteHost string, NewExternalPort uint16, NewProtocol string) error
}

// UPnP UPnP IGD 映射器
type UPnP struct {
	// discover 与 localIP 可在测试中替换
	discover func(ctx context.Context) (igdClient, error)
	localIP  func() (netip.Addr, error)

	mu     sync.Mutex
	client igdClient
	port   uint16
}

var _ Mapper = (*UPnP)(nil)

// NewUPnP 创建 UPnP 映射器
func NewUPnP() *UPnP {
	return &UPnP{discover: discoverIGD, localIP: addrutil.LocalIP}
}

// discoverIGD 依次尝试 IGDv2 WANIPConnection2/1 与 IGDv1 WANIPConnection1
func discoverIGD(ctx context.Context) (igdClient, error) {
	if clients, _, err := internetgateway2.NewWANIPConnection2ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	if clients, _, err := internetgateway2.NewWANIPConnection1ClientsCtx(ctx); err == nil && len(clients) > 0 {
		return clients[0], nil
	}
	clients, _, err := internetgateway1.NewWANIPConnection1ClientsCtx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGateway, err)
	}
	if len(clients) == 0 {
		return nil, ErrNoGateway
	}
	return clients[0], nil
}

// Name 返回映射器名称
func (u *UPnP) Name() string {
	return KindUPnP
}

// Map 建立映射，外部端口与内部端口相同
func (u *UPnP) Map(ctx context.Context, port int, lifetime time.Duration) (netip.AddrPort, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if port <= 0 || port > 65535 {
		return netip.AddrPort{}, fmt.Errorf("portmap: invalid port %d", port)
	}

	if u.client == nil {
		c, err := u.discover(ctx)
		if err != nil {
			return netip.AddrPort{}, err
		}
		u.client = c
	}

	local, err := u.localIP()
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("local address: %w", err)
	}

	extStr, err := u.client.GetExternalIPAddressCtx(ctx)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("get external address: %w", err)
	}
	ext, err := netip.ParseAddr(extStr)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("gateway returned invalid address %q: %w", extStr, err)
	}

	p := uint16(port)
	err = u.client.AddPortMappingCtx(ctx, "", p, "UDP", p, local.String(), true, mappingDescription, uint32(lifetime/time.Second))
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("add port mapping: %w", err)
	}

	u.port = p
	ep := netip.AddrPortFrom(ext.Unmap(), p)
	log.Info("UPnP 映射已建立", "internal", netip.AddrPortFrom(local, p), "external", ep)
	return ep, nil
}

// Unmap 删除映射
func (u *UPnP) Unmap(ctx context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.client == nil || u.port == 0 {
		return ErrNotMapped
	}
	port := u.port
	u.port = 0

	if err := u.client.DeletePortMappingCtx(ctx, "", port, "UDP"); err != nil {
		return fmt.Errorf("delete port mapping: %w", err)
	}
	return nil
}
