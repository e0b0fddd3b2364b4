package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration は "5s" のような文字列、または秒数で指定できる時間
type Duration time.Duration

// Std は time.Duration に変換する
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) parse(text string) error {
	text = strings.TrimSpace(text)
	if seconds, err := strconv.ParseFloat(text, 64); err == nil {
		*d = Duration(seconds * float64(time.Second))
		return nil
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("時間の形式が不正です %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON は JSON設定ファイル用
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return d.parse(text)
	}
	var seconds float64
	if err := json.Unmarshal(data, &seconds); err != nil {
		return fmt.Errorf("時間の形式が不正です %s", string(data))
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

// UnmarshalYAML は YAML設定ファイル・環境変数・既定値用
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err != nil {
		return err
	}
	return d.parse(text)
}

// UnmarshalText は TOML設定ファイル用
func (d *Duration) UnmarshalText(text []byte) error {
	return d.parse(string(text))
}
