package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// 环境变量
const (
	EnvLevel     = "NETPIPE_LOG_LEVEL"
	EnvFormat    = "NETPIPE_LOG_FORMAT"
	EnvAddSource = "NETPIPE_LOG_ADD_SOURCE"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Levels 默认级别与子系统级别
type Levels struct {
	Default    slog.Level
	Subsystems map[string]slog.Level
}

// For 返回子系统的级别
func (l Levels) For(subsystem string) slog.Level {
	if lvl, ok := l.Subsystems[subsystem]; ok {
		return lvl
	}
	return l.Default
}

// ParseLevels 解析级别描述
//
// 格式: 子系统=级别,子系统=级别,默认级别。空描述返回 info。
func ParseLevels(desc string) (Levels, error) {
	levels := Levels{Default: slog.LevelInfo, Subsystems: make(map[string]slog.Level)}
	for _, part := range strings.Split(desc, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		name, lvlName, scoped := strings.Cut(part, "=")
		if !scoped {
			lvlName = name
		}
		lvl, err := parseLevel(strings.TrimSpace(lvlName))
		if err != nil {
			return Levels{}, err
		}
		if !scoped {
			levels.Default = lvl
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return Levels{}, fmt.Errorf("empty subsystem in %q", part)
		}
		levels.Subsystems[name] = lvl
	}
	return levels, nil
}

func parseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

type envConfig struct {
	levels    Levels
	format    LogFormat
	addSource bool
}

// loadEnv 读取环境变量；级别描述无效时退回 info 并在 stderr 提示
func loadEnv() *envConfig {
	cfg := &envConfig{levels: Levels{Default: slog.LevelInfo}}

	if desc := os.Getenv(EnvLevel); desc != "" {
		levels, err := ParseLevels(desc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: ignoring %s: %v\n", EnvLevel, err)
		} else {
			cfg.levels = levels
		}
	}
	if strings.EqualFold(os.Getenv(EnvFormat), "json") {
		cfg.format = FormatJSON
	}
	switch strings.ToLower(os.Getenv(EnvAddSource)) {
	case "1", "true":
		cfg.addSource = true
	}
	return cfg
}
