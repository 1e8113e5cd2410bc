package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration 可在 JSON 中以 "250ms"、"5m" 形式书写的时长
//
// 数字按纳秒解释，null 与空串表示 0。
type Duration time.Duration

var (
	_ json.Marshaler   = Duration(0)
	_ json.Unmarshaler = (*Duration)(nil)
)

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(int64(x))
	case string:
		return d.UnmarshalText([]byte(x))
	default:
		return fmt.Errorf("duration: unsupported JSON value %s", data)
	}
	return nil
}

// UnmarshalText 解析 time.ParseDuration 格式
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON 输出可读字符串
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Duration 返回 time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }
