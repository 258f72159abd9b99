// Package portmap 在网关上为主机端口建立 UDP 映射
//
// 支持两种协议：
//   - NAT-PMP：轻量 UDP 协议，Apple 设备原生支持
//   - UPnP IGD：依次尝试 IGDv2 与 IGDv1 的 WANIPConnection 服务
//
// 映射只是打洞的补充：网关支持时，主机的公网端点固定可达，
// 中继下发的 External 端点即可直接命中。
package portmap

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/dep2p/go-punchnet/internal/util/logger"
)

var log = logger.Logger("nat.portmap")

// 映射器名称
const (
	KindNATPMP = "natpmp"
	KindUPnP   = "upnp"
)

// DefaultLifetime 默认映射租期
const DefaultLifetime = time.Hour

// 错误定义
var (
	ErrUnknownMapper = errors.New("portmap: unknown mapper")
	ErrNoGateway     = errors.New("portmap: no gateway found")
	ErrNotMapped     = errors.New("portmap: no active mapping")
)

// Mapper 端口映射器
type Mapper interface {
	// Name 映射器名称
	Name() string

	// Map 映射 UDP 端口，返回网关上的公网端点
	Map(ctx context.Context, port int, lifetime time.Duration) (netip.AddrPort, error)

	// Unmap 删除 Map 建立的映射
	Unmap(ctx context.Context) error
}

// New 按名称创建映射器
func New(kind string, timeout time.Duration) (Mapper, error) {
	switch kind {
	case KindNATPMP:
		return NewNATPMP(timeout), nil
	case KindUPnP:
		return NewUPnP(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMapper, kind)
	}
}

// callWithContext 在独立协程中执行不支持 context 的阻塞调用
func callWithContext(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
