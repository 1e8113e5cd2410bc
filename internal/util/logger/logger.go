// Package logger 提供 netpipe 的统一日志系统
//
// 基于标准库 log/slog，每个子系统一个 Logger，级别可按子系统配置并在运行时调整。
//
// 使用示例:
//
//	var log = logger.Logger("pipe")
//
//	func foo() {
//	    log.Debug("管道已取消", "pipe", id, "reason", err)
//	}
//
// 环境变量:
//
//	NETPIPE_LOG_LEVEL=pump=debug,info   # pump 为 debug，其余 info
//	NETPIPE_LOG_FORMAT=json             # JSON 输出
//	NETPIPE_LOG_ADD_SOURCE=1            # 附带源码位置
package logger

import (
	"io"
	"log/slog"
	"sync"
)

type entry struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var registry = struct {
	sync.Mutex
	env     *envConfig
	levels  Levels
	entries map[string]*entry
}{entries: make(map[string]*entry)}

// loadLocked 首次使用时读取环境变量
func loadLocked() *envConfig {
	if registry.env == nil {
		registry.env = loadEnv()
		registry.levels = registry.env.levels
	}
	return registry.env
}

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回相同实例。
func Logger(subsystem string) *slog.Logger {
	registry.Lock()
	defer registry.Unlock()

	if e, ok := registry.entries[subsystem]; ok {
		return e.logger
	}

	env := loadLocked()
	lv := new(slog.LevelVar)
	lv.Set(registry.levels.For(subsystem))
	e := &entry{
		logger: slog.New(newHandler(subsystem, lv, env.format, env.addSource)),
		level:  lv,
	}
	registry.entries[subsystem] = e
	return e.logger
}

// SetLevel 设置单个子系统的级别，对尚未创建的 Logger 同样生效
func SetLevel(subsystem string, level slog.Level) {
	registry.Lock()
	defer registry.Unlock()

	loadLocked()
	if registry.levels.Subsystems == nil {
		registry.levels.Subsystems = make(map[string]slog.Level)
	}
	registry.levels.Subsystems[subsystem] = level
	if e, ok := registry.entries[subsystem]; ok {
		e.level.Set(level)
	}
}

// SetLevels 按级别描述整体替换级别配置
//
// 格式与 NETPIPE_LOG_LEVEL 相同，如 "pump=debug,netstack=warn,info"。
func SetLevels(desc string) error {
	levels, err := ParseLevels(desc)
	if err != nil {
		return err
	}

	registry.Lock()
	defer registry.Unlock()

	loadLocked()
	registry.levels = levels
	for name, e := range registry.entries {
		e.level.Set(levels.For(name))
	}
	return nil
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 也会切换到新的输出。
func SetOutput(w io.Writer) {
	output.set(w)
}

// Discard 返回丢弃所有日志的 Logger，主要用于测试
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}
