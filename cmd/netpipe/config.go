package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// ============================================================================
//                              运行配置（CLI 专用）
// ============================================================================

// 运行模式
const (
	modeEchoServer  = "echo-server"
	modeEchoClient  = "echo-client"
	modeVaultServer = "vault-server"
	modeVaultClient = "vault-client"
)

// 环境变量
const (
	envPrefix = "NETPIPE_"
	envMode   = "MODE"
	envAddr   = "ADDR"
	envTLS    = "TLS"
	envMux    = "MUX"
)

// cliConfig 运行配置，不属于 config.Config
type cliConfig struct {
	mode       string
	addr       string
	tls        bool
	mux        bool
	serverName string
	message    string
	count      int
	args       []string
}

func (c cliConfig) validate() error {
	switch c.mode {
	case modeEchoServer, modeEchoClient, modeVaultServer, modeVaultClient:
	default:
		return fmt.Errorf("未知模式: %s", c.mode)
	}
	if c.addr == "" {
		return fmt.Errorf("地址不能为空")
	}
	if c.mode == modeEchoClient && c.count <= 0 {
		return fmt.Errorf("count 必须为正数: %d", c.count)
	}
	return nil
}

// applyEnvOverrides 应用环境变量覆盖
//
// 只覆盖未在命令行显式设置的参数。
func applyEnvOverrides(c *cliConfig) {
	if v := os.Getenv(envPrefix + envMode); v != "" && !isFlagSet("mode") {
		c.mode = v
	}
	if v := os.Getenv(envPrefix + envAddr); v != "" && !isFlagSet("addr") {
		c.addr = v
	}
	if v := os.Getenv(envPrefix + envTLS); v != "" && !isFlagSet("tls") {
		c.tls = parseBool(v)
	}
	if v := os.Getenv(envPrefix + envMux); v != "" && !isFlagSet("mux") {
		c.mux = parseBool(v)
	}
}

// ============================================================================
//                              辅助函数
// ============================================================================

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
