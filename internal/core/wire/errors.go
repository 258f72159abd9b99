package wire

import "errors"

var (
	// ErrShortBuffer 剩余字节不足
	ErrShortBuffer = errors.New("wire: short buffer")

	// ErrStringTooLong 字符串超过 MaxStringLength
	ErrStringTooLong = errors.New("wire: string too long")

	// ErrInvalidString 字符串不是合法 UTF-8
	ErrInvalidString = errors.New("wire: invalid utf-8 string")

	// ErrUnexpectedKind 数据报类型不符
	ErrUnexpectedKind = errors.New("wire: unexpected datagram kind")
)
