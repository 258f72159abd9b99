package natproto

import "errors"

var (
	// ErrInvalidEndpoint 端点无法解析
	ErrInvalidEndpoint = errors.New("natproto: invalid endpoint")

	// ErrInvalidPort 端口超出范围
	ErrInvalidPort = errors.New("natproto: port out of range")

	// ErrMissingToken 引荐令牌为空
	ErrMissingToken = errors.New("natproto: missing token")
)
