//go:build !unix

package lan

import "syscall"

// 非 unix 平台上 net 包创建的 UDP 套接字已开启广播
func enableBroadcast(_, _ string, _ syscall.RawConn) error {
	return nil
}
