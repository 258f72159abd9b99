package quic

import "errors"

var (
	// ErrNotRunning 引擎未启动
	ErrNotRunning = errors.New("quic: engine not running")

	// ErrAlreadyRunning 引擎已启动
	ErrAlreadyRunning = errors.New("quic: engine already running")

	// ErrUnknownPeer 对端不存在或已断开
	ErrUnknownPeer = errors.New("quic: unknown peer")

	// ErrDatagramTooLarge 不可靠数据超过 MTU
	ErrDatagramTooLarge = errors.New("quic: datagram exceeds mtu")

	// ErrFrameTooLarge 可靠帧超过上限
	ErrFrameTooLarge = errors.New("quic: frame too large")

	// ErrInvalidAddress 无效地址
	ErrInvalidAddress = errors.New("quic: invalid address")
)
