package server

import "errors"

var (
	// ErrServerClosed 服务端已关闭
	ErrServerClosed = errors.New("relay server closed")

	// ErrNotListening 尚未调用 Listen
	ErrNotListening = errors.New("relay server not listening")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("relay server: invalid config")
)
