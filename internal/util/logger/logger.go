// Package logger 提供 punchnet 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别（discovery.lan、nat.punch、relay ...）
//   - 环境变量配置（PUNCHNET_LOG_LEVEL, PUNCHNET_LOG_FORMAT）
//   - 运行期调整级别（命令行 -log-level）
//
// 使用示例:
//
//	package punch
//
//	import "github.com/dep2p/go-punchnet/internal/util/logger"
//
//	var log = logger.Logger("nat.punch")
//
//	func foo() {
//	    log.Info("收到引荐", "endpoint", ep, "token", token)
//	}
//
// 环境变量配置:
//
//	# 默认 info，发现模块 debug
//	PUNCHNET_LOG_LEVEL=discovery.lan=debug,info
//
//	# 使用 JSON 格式输出
//	PUNCHNET_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 缓存各子系统的 Handler（用于动态调整级别）
	handlers sync.Map // map[string]*subsystemHandler

	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例，级别取自 PUNCHNET_LOG_LEVEL。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	handler := newHandler(subsystem, cfg.LevelForSubsystem(subsystem), cfg.Format)

	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(handler))
	if !loaded {
		handlers.Store(subsystem, handler)
	}
	return actual.(*slog.Logger)
}

// GlobalLogger 返回全局 Logger（子系统 punchnet）
func GlobalLogger() *slog.Logger {
	globalLoggerOnce.Do(func() {
		globalLogger = Logger("punchnet")
	})
	return globalLogger
}

// SetLevel 动态设置子系统的日志级别
func SetLevel(subsystem string, level slog.Level) {
	if h, ok := handlers.Load(subsystem); ok {
		h.(*subsystemHandler).SetLevel(level)
	}
}

// SetGlobalLevel 设置所有已创建子系统的日志级别
//
// 之后新建的子系统仍按环境变量取级别，因此同时覆盖默认级别。
func SetGlobalLevel(level slog.Level) {
	cfg := ConfigFromEnv()
	cfg.mu.Lock()
	cfg.DefaultLevel = level
	cfg.mu.Unlock()

	handlers.Range(func(_, value any) bool {
		value.(*subsystemHandler).SetLevel(level)
		return true
	})
}

// Discard 返回一个丢弃所有日志的 Logger，主要用于测试
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// With 创建带有预设属性的 Logger
func With(subsystem string, args ...any) *slog.Logger {
	return Logger(subsystem).With(args...)
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 通过 dynamicWriter 同样会切换到新的输出。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
