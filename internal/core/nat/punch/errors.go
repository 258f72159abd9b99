package punch

import "errors"

var (
	// ErrInvalidRelayAddress 中继地址不是合法 IP
	ErrInvalidRelayAddress = errors.New("punch: invalid relay address")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("punch: invalid config")

	// ErrInvalidAddress 连接目标地址无效
	ErrInvalidAddress = errors.New("punch: invalid address")

	// ErrConnectInProgress 已有连接尝试未结束
	ErrConnectInProgress = errors.New("punch: connect already in progress")

	// ErrNotClient 服务端不能发起连接
	ErrNotClient = errors.New("punch: connect requires client role")

	// ErrPayloadTooLarge 连接数据超过 MaxConnectPayload
	ErrPayloadTooLarge = errors.New("punch: connect payload too large")

	// ErrNilHandler 未提供上层处理器
	ErrNilHandler = errors.New("punch: nil peer handler")
)
