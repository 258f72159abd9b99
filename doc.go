// Package punchnet 提供局域网发现、NAT 打洞与中继引荐的联机传输
//
// # 核心概念
//
//   - Node: 用户交互的主入口，持有驱动器协程
//   - 发现服务: 客户端向局域网广播探测，收集主机应答
//   - 打洞传输: 客户端经中继引荐与主机同时打洞，超时后直接连接
//   - 中继: 主机周期登记，客户端按端点请求引荐（cmd/relay-server）
//
// # 快速开始
//
//	import "github.com/dep2p/go-punchnet"
//
//	cfg := config.NewConfig()
//	cfg.Role = "client"
//	cfg.NAT.RelayAddress = "203.0.113.10"
//
//	node, err := punchnet.New(cfg,
//	    punchnet.WithPeerHandler(handler),
//	    punchnet.WithDiscoveryListener(listener),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := node.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Stop(context.Background())
//
//	// 连接结果经 handler.OnConnected / OnConnectFailed 报告
//	err = node.Connect(ctx, "198.51.100.7", 7777, []byte("hello"))
//
// # 线程模型
//
// 发现服务与打洞传输都是单线程状态机，由 Node 内部的驱动器协程按
// transport.update_interval 轮询。所有回调（PeerHandler、DiscoveryListener）
// 都在驱动器协程上执行；其他协程需要访问内部组件时使用 Node.Do。
package punchnet
