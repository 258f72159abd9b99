package quic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// noPayload 握手中表示未携带连接数据
	noPayload = math.MaxUint32

	// maxHelloSize 连接数据上限
	maxHelloSize = 1 << 12

	// maxFrameSize 可靠帧上限
	maxFrameSize = 1 << 20

	// acceptByte 服务端接受连接时回写
	acceptByte = 0x01
)

// writeHello 写入握手，payload 为 nil 时写入 noPayload
func writeHello(w io.Writer, payload []byte) error {
	if len(payload) > maxHelloSize {
		return fmt.Errorf("%w: hello %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, 4, 4+len(payload))
	if payload == nil {
		binary.LittleEndian.PutUint32(buf, noPayload)
	} else {
		binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
		buf = append(buf, payload...)
	}
	_, err := w.Write(buf)
	return err
}

// readHello 读取握手，未携带连接数据时返回 nil
func readHello(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(hdr[:])
	if n == noPayload {
		return nil, nil
	}
	if n > maxHelloSize {
		return nil, fmt.Errorf("%w: hello %d bytes", ErrFrameTooLarge, n)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// writeFrame 写入一个可靠帧
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}

	buf := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(buf, uint32(len(data)))
	copy(buf[4:], data)
	_, err := w.Write(buf)
	return err
}

// readFrame 读取一个可靠帧
func readFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(hdr[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data, nil
}
