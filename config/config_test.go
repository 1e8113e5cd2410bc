package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig 测试创建默认配置
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, int64(512*1024), cfg.Pipe.StreamThreshold)
	assert.Equal(t, time.Second, cfg.Pump.PollInterval.Duration())

	t.Log("✅ NewConfig 测试通过")
}

// TestFromJSON 测试 JSON 加载保留默认值
func TestFromJSON(t *testing.T) {
	cfg, err := FromJSON([]byte(`{
		"pipe": {"stream_threshold": 1024, "datagram_threshold": 8},
		"pump": {"poll_interval": "250ms"},
		"tls":  {"min_version": "1.3"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, int64(1024), cfg.Pipe.StreamThreshold)
	assert.Equal(t, int64(8), cfg.Pipe.DatagramThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.Pump.PollInterval.Duration())
	assert.Equal(t, "1.3", cfg.TLS.MinVersion)
	// 未设置的字段保持默认
	assert.Equal(t, 64*1024, cfg.Pump.ReadSize)
	assert.NoError(t, cfg.Validate())

	_, err = FromJSON([]byte(`{"pump": {"poll_interval": "abc"}}`))
	assert.Error(t, err)

	t.Log("✅ FromJSON 测试通过")
}

// TestSaveAndLoadFile 测试文件保存与加载
func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netpipe.json")

	cfg := NewConfig()
	cfg.Pipe.ReceiveTimeout = Duration(3 * time.Second)
	require.NoError(t, cfg.SaveFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"receive_timeout": "3s"`)

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// TestConfig_ValidateErrors 测试无效配置
func TestConfig_ValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero stream threshold", func(c *Config) { c.Pipe.StreamThreshold = 0 }},
		{"zero datagram threshold", func(c *Config) { c.Pipe.DatagramThreshold = 0 }},
		{"negative receive timeout", func(c *Config) { c.Pipe.ReceiveTimeout = -1 }},
		{"zero poll interval", func(c *Config) { c.Pump.PollInterval = 0 }},
		{"batch below read size", func(c *Config) { c.Pump.MaxBatchBytes = 1 }},
		{"zero connect timeout", func(c *Config) { c.TCP.ConnectTimeout = 0 }},
		{"bad tls version", func(c *Config) { c.TLS.MinVersion = "1.0" }},
		{"cert without key", func(c *Config) { c.TLS.CertFile = "cert.pem" }},
		{"small mux window", func(c *Config) { c.Mux.MaxStreamWindowSize = 1024 }},
		{"zero vault version", func(c *Config) { c.Vault.Version = 0 }},
		{"negative report interval", func(c *Config) { c.Bandwidth.ReportInterval = -1 }},
		{"trim without idle timeout", func(c *Config) { c.Bandwidth.IdleTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestValidateAndFix 测试自动修复
func TestValidateAndFix(t *testing.T) {
	cfg := NewConfig()
	cfg.Pipe.StreamThreshold = -5
	cfg.Pump.PollInterval = 0
	cfg.Pump.MaxBatchBytes = 1
	cfg.Pipe.SendTimeout = -1
	cfg.Bandwidth.IdleTimeout = 0

	fixed, err := ValidateAndFix(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultPipeConfig().StreamThreshold, fixed.Pipe.StreamThreshold)
	assert.Equal(t, DefaultPumpConfig().PollInterval, fixed.Pump.PollInterval)
	assert.Equal(t, fixed.Pump.ReadSize, fixed.Pump.MaxBatchBytes)
	assert.Equal(t, Duration(0), fixed.Pipe.SendTimeout)
	assert.Equal(t, DefaultBandwidthConfig().IdleTimeout, fixed.Bandwidth.IdleTimeout)

	fresh, err := ValidateAndFix(nil)
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), fresh)

	assert.Error(t, ValidateAll(nil))
}

// TestApplyPreset 测试预设
func TestApplyPreset(t *testing.T) {
	for _, name := range []string{"", "default", "low-latency", "bulk"} {
		cfg := NewConfig()
		require.NoError(t, ApplyPreset(cfg, name), name)
		assert.NoError(t, cfg.Validate(), name)
	}

	cfg := NewConfig()
	require.NoError(t, ApplyPreset(cfg, "low-latency"))
	assert.Equal(t, int64(64*1024), cfg.Pipe.StreamThreshold)

	assert.Error(t, ApplyPreset(cfg, "unknown"))
	assert.Error(t, ApplyPreset(nil, "bulk"))
}

// TestDuration_JSON 测试时长的 JSON 编解码
func TestDuration_JSON(t *testing.T) {
	tests := []struct {
		in   string
		want Duration
	}{
		{`"250ms"`, Duration(250 * time.Millisecond)},
		{`"1h30m"`, Duration(90 * time.Minute)},
		{`1000`, Duration(1000)},
		{`""`, 0},
		{`null`, 0},
	}
	for _, tt := range tests {
		var d Duration
		require.NoError(t, d.UnmarshalJSON([]byte(tt.in)), tt.in)
		assert.Equal(t, tt.want, d, tt.in)
	}

	var d Duration
	assert.Error(t, d.UnmarshalJSON([]byte(`"soon"`)))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))

	out, err := Duration(5 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"5s"`, string(out))
}
