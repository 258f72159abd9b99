package lan

import (
	"github.com/dep2p/go-punchnet/internal/core/wire"
)

// EncodeProbe 编码探测包
func EncodeProbe(secret int32) []byte {
	w := wire.NewWriter(wire.KindDiscoveryProbe)
	w.PutInt32(secret)
	return w.Bytes()
}

// DecodeProbe 解码探测包，返回其中的密钥
func DecodeProbe(data []byte) (int32, bool) {
	payload, err := wire.Frame(data, wire.KindDiscoveryProbe)
	if err != nil {
		return 0, false
	}
	return wire.NewReader(payload).TryGetInt32()
}

// EncodeReply 编码应答包（主机侧）
func EncodeReply(secret int32, hostName string) []byte {
	w := wire.NewWriter(wire.KindDiscoveryReply)
	w.PutInt32(secret)
	w.PutString(hostName)
	return w.Bytes()
}

// dropReason 应答被丢弃的原因，空串表示接受
type dropReason string

const (
	dropNone      dropReason = ""
	dropKind      dropReason = "kind"
	dropShort     dropReason = "short"
	dropSecret    dropReason = "secret"
	dropMalformed dropReason = "malformed"
)

// decodeReply 解码应答包并校验密钥
func decodeReply(data []byte, secret int32) (string, dropReason) {
	payload, err := wire.Frame(data, wire.KindDiscoveryReply)
	if err != nil {
		return "", dropKind
	}
	r := wire.NewReader(payload)
	got, ok := r.TryGetInt32()
	if !ok {
		return "", dropShort
	}
	if got != secret {
		return "", dropSecret
	}
	host, err := r.GetString()
	if err != nil {
		return "", dropMalformed
	}
	return host, dropNone
}

// Responder 主机侧的探测应答器
type Responder struct {
	secret int32
	reply  []byte
}

// NewResponder 创建应答器，应答内容预先编码
func NewResponder(secret int32, hostName string) *Responder {
	return &Responder{secret: secret, reply: EncodeReply(secret, hostName)}
}

// Reply 若 data 是密钥匹配的探测包则返回应答
func (r *Responder) Reply(data []byte) ([]byte, bool) {
	secret, ok := DecodeProbe(data)
	if !ok || secret != r.secret {
		return nil, false
	}
	return r.reply, true
}
