package wire

import (
	"encoding/binary"
	"unicode/utf8"
)

// Reader 顺序解码器
type Reader struct {
	data []byte
	pos  int
}

// NewReader 创建解码器（data 不含类型字节）
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// AvailableBytes 剩余未读字节数
func (r *Reader) AvailableBytes() int {
	return len(r.data) - r.pos
}

// TryGetInt32 尝试读取 int32，不足 4 字节时返回 false 且不前进
func (r *Reader) TryGetInt32() (int32, bool) {
	if r.AvailableBytes() < 4 {
		return 0, false
	}
	v := int32(binary.LittleEndian.Uint32(r.data[r.pos:]))
	r.pos += 4
	return v, true
}

// GetInt32 读取 int32
func (r *Reader) GetInt32() (int32, error) {
	v, ok := r.TryGetInt32()
	if !ok {
		return 0, ErrShortBuffer
	}
	return v, nil
}

// GetUint16 读取 uint16
func (r *Reader) GetUint16() (uint16, error) {
	if r.AvailableBytes() < 2 {
		return 0, ErrShortBuffer
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// GetString 读取带长度前缀的字符串
func (r *Reader) GetString() (string, error) {
	prefix, err := r.GetUint16()
	if err != nil {
		return "", err
	}
	if prefix == 0 {
		return "", nil
	}
	n := int(prefix) - 1
	if n > MaxStringLength {
		return "", ErrStringTooLong
	}
	b, err := r.GetBytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidString
	}
	return string(b), nil
}

// GetBytes 读取 n 个字节（与底层数据共享内存）
func (r *Reader) GetBytes(n int) ([]byte, error) {
	if n < 0 || r.AvailableBytes() < n {
		return nil, ErrShortBuffer
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Remaining 返回剩余全部字节
func (r *Reader) Remaining() []byte {
	return r.data[r.pos:]
}
