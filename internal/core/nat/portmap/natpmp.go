package portmap

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/jackpal/gateway"
	natpmp "github.com/jackpal/go-nat-pmp"
)

// natpmpClient go-nat-pmp 客户端中用到的方法
type natpmpClient interface {
	GetExternalAddress() (*natpmp.GetExternalAddressResult, error)
	AddPortMapping(protocol string, internalPort, requestedExternalPort int, lifetime int) (*natpmp.AddPortMappingResult, error)
}

// NATPMP NAT-PMP 映射器
type NATPMP struct {
	timeout time.Duration

	// newClient 可在测试中替换
	newClient func() (natpmpClient, error)

	mu     sync.Mutex
	client natpmpClient
	port   int
}

var _ Mapper = (*NATPMP)(nil)

// NewNATPMP 创建 NAT-PMP 映射器，网关通过默认路由发现
func NewNATPMP(timeout time.Duration) *NATPMP {
	m := &NATPMP{timeout: timeout}
	m.newClient = func() (natpmpClient, error) {
		gw, err := gateway.DiscoverGateway()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoGateway, err)
		}
		if gw == nil || gw.IsUnspecified() {
			return nil, ErrNoGateway
		}
		log.Debug("发现网关", "gateway", gw)
		return natpmp.NewClientWithTimeout(gw, m.timeout), nil
	}
	return m
}

// Name 返回映射器名称
func (m *NATPMP) Name() string {
	return KindNATPMP
}

// Map 建立映射，请求的外部端口与内部端口相同
func (m *NATPMP) Map(ctx context.Context, port int, lifetime time.Duration) (netip.AddrPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		c, err := m.newClient()
		if err != nil {
			return netip.AddrPort{}, err
		}
		m.client = c
	}

	var ext *natpmp.GetExternalAddressResult
	err := callWithContext(ctx, func() (err error) {
		ext, err = m.client.GetExternalAddress()
		return err
	})
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("get external address: %w", err)
	}

	var res *natpmp.AddPortMappingResult
	err = callWithContext(ctx, func() (err error) {
		res, err = m.client.AddPortMapping("udp", port, port, int(lifetime/time.Second))
		return err
	})
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("add port mapping: %w", err)
	}

	m.port = port
	ep := netip.AddrPortFrom(netip.AddrFrom4(ext.ExternalIPAddress), res.MappedExternalPort)
	log.Info("NAT-PMP 映射已建立", "internal", port, "external", ep, "lifetime", res.PortMappingLifetimeInSeconds)
	return ep, nil
}

// Unmap 以零租期删除映射
func (m *NATPMP) Unmap(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil || m.port == 0 {
		return ErrNotMapped
	}
	port := m.port
	m.port = 0
	return callWithContext(ctx, func() error {
		_, err := m.client.AddPortMapping("udp", port, 0, 0)
		return err
	})
}
