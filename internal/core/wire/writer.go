package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// MaxStringLength 字符串最大字节数
const MaxStringLength = math.MaxUint16 - 1

// Writer 追加式编码器，可通过 Reset 复用底层缓冲
type Writer struct {
	buf []byte
}

// NewWriter 创建以 kind 开头的编码器
func NewWriter(kind Kind) *Writer {
	w := &Writer{buf: make([]byte, 0, 64)}
	w.buf = append(w.buf, byte(kind))
	return w
}

// Reset 清空已写入内容（保留容量）并写入新的类型字节
func (w *Writer) Reset(kind Kind) {
	w.buf = append(w.buf[:0], byte(kind))
}

// PutInt32 写入小端 int32
func (w *Writer) PutInt32(v int32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(v))
}

// PutUint16 写入小端 uint16
func (w *Writer) PutUint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// PutString 写入带长度前缀的字符串
//
// 超过 MaxStringLength 的部分在字符边界处截断。
func (w *Writer) PutString(s string) {
	if s == "" {
		w.PutUint16(0)
		return
	}
	if len(s) > MaxStringLength {
		s = truncate(s, MaxStringLength)
	}
	w.PutUint16(uint16(len(s) + 1))
	w.buf = append(w.buf, s...)
}

// truncate 截断到不超过 n 字节，不拆分 UTF-8 字符
func truncate(s string, n int) string {
	i := n
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return s[:i]
}

// PutBytes 写入原始字节
func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes 返回已编码内容，在下一次写入或 Reset 前有效
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len 已编码字节数（含类型字节）
func (w *Writer) Len() int {
	return len(w.buf)
}
