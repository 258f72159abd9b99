package punchnet

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 节点未启动
	ErrNotStarted = errors.New("node not started")

	// ErrAlreadyStarted 节点已启动
	ErrAlreadyStarted = errors.New("node already started")

	// ErrNodeClosed 节点已关闭
	ErrNodeClosed = errors.New("node closed")

	// ErrNilConfig 未提供配置
	ErrNilConfig = errors.New("nil config")

	// ErrDiscoveryDisabled 发现服务未启用（服务端或 discovery.enable=false）
	ErrDiscoveryDisabled = errors.New("discovery disabled")

	// ErrNoPublicEndpoint 公网端点未知
	ErrNoPublicEndpoint = errors.New("public endpoint unknown")
)
