// Package punch 实现经会合中继打洞的连接建立状态机
//
// Transport 包装一个投递引擎（interfaces.Engine），角色在构造时显式给出：
//
// 服务端：
//   - Run 时在指定端口启动引擎，并向中继登记内网端点
//   - 每隔 NatPunchHeartbeat 重新登记，维持 NAT 映射与中继表项
//   - 容量未满时把连接请求交给上层决定接受或拒绝
//   - 回应同一套接字上收到的局域网发现探测
//
// 客户端：
//
//	Idle ──Connect──▶ Punching ──引荐成功 / 超时回退──▶ Connecting ──▶ Connected
//	  │                                                    │
//	  └──────────────── 本机地址直接连接 ──────────────────┘
//
// 所有状态只在 Poll 以及与 Poll 同一协程的调用中修改，时间由调用方传入。
package punch
