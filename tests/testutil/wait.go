package testutil

import (
	"context"
	"testing"
	"time"
)

// WaitForCondition 等待条件满足或超时
//
// 返回：条件是否满足（超时返回 false）
func WaitForCondition(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if condition() {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// WaitForConditionOrFail 等待条件满足，超时则 fail 测试
func WaitForConditionOrFail(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool, msg string) {
	t.Helper()

	if !WaitForCondition(t, timeout, interval, condition) {
		t.Fatalf("等待超时: %s", msg)
	}
}

// Eventually 在指定时间内重试条件检查（间隔 20ms）
//
// 示例:
//
//	testutil.Eventually(t, 5*time.Second, func() bool {
//	    return len(handler.ConnectedCalls) > 0
//	}, "应该建立连接")
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	WaitForConditionOrFail(t, timeout, 20*time.Millisecond, condition, msg)
}

// PollUntil 以固定步长推进时间并调用 poll，直到条件满足
//
// 用于驱动 Poll(now) 风格的状态机与真实网络 I/O 协同的测试。
func PollUntil(t *testing.T, timeout time.Duration, poll func(now time.Time), condition func() bool, msg string) {
	t.Helper()
	Eventually(t, timeout, func() bool {
		poll(time.Now())
		return condition()
	}, msg)
}
