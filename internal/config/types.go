package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// ByteSize 表示字节数，配置中既可写 "512MB" 这类人类可读格式，也可写纯整数。
type ByteSize int64

// UnmarshalText 借助 go-humanize 解析 "64KiB"、"1.5GB" 等写法。
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := parseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Int64 返回字节数。
func (b ByteSize) Int64() int64 {
	return int64(b)
}

// String 输出人类可读的大小，用于日志。
func (b ByteSize) String() string {
	if b < 0 {
		return strconv.FormatInt(int64(b), 10)
	}
	return humanize.Bytes(uint64(b))
}

func parseByteSize(raw string) (ByteSize, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if intVal, err := parseInt(raw); err == nil {
		return ByteSize(intVal), nil
	}
	parsed, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size value: %s", raw)
	}
	return ByteSize(parsed), nil
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述全局运行时行为。
type GlobalConfig struct {
	ListenPort        int      `mapstructure:"ListenPort"`
	LogLevel          string   `mapstructure:"LogLevel"`
	LogFilePath       string   `mapstructure:"LogFilePath"`
	LogMaxSize        int      `mapstructure:"LogMaxSize"`
	LogMaxBackups     int      `mapstructure:"LogMaxBackups"`
	LogCompress       bool     `mapstructure:"LogCompress"`
	MediaRoot         string   `mapstructure:"MediaRoot"`
	DatabasePath      string   `mapstructure:"DatabasePath"`
	MaxArchiveEntries int      `mapstructure:"MaxArchiveEntries"`
	MaxArchiveSize    ByteSize `mapstructure:"MaxArchiveSize"`
	ReadTimeout       Duration `mapstructure:"ReadTimeout"`
	WriteTimeout      Duration `mapstructure:"WriteTimeout"`
}

// ProjectConfig 声明启动时写入内容库的项目，Archive 为源码 ZIP 的路径。
type ProjectConfig struct {
	ID          int64  `mapstructure:"ID"`
	Title       string `mapstructure:"Title"`
	Description string `mapstructure:"Description"`
	Archive     string `mapstructure:"Archive"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig    `mapstructure:",squash"`
	Projects []ProjectConfig `mapstructure:"Project"`
}

// HasArchive 表示项目是否声明了源码压缩包。
func (p ProjectConfig) HasArchive() bool {
	return strings.TrimSpace(p.Archive) != ""
}

// ArchivePath 返回压缩包的绝对路径，相对路径以 MediaRoot 为基准。
func (p ProjectConfig) ArchivePath(mediaRoot string) string {
	archive := strings.TrimSpace(p.Archive)
	if archive == "" {
		return ""
	}
	if filepath.IsAbs(archive) {
		return filepath.Clean(archive)
	}
	return filepath.Join(mediaRoot, filepath.FromSlash(archive))
}

// ArchiveModes 返回所有项目的压缩包状态摘要，例如 1:archive、2:none。
func ArchiveModes(projects []ProjectConfig) []string {
	if len(projects) == 0 {
		return nil
	}
	result := make([]string, len(projects))
	for i, p := range projects {
		mode := "none"
		if p.HasArchive() {
			mode = "archive"
		}
		result[i] = fmt.Sprintf("%d:%s", p.ID, mode)
	}
	return result
}
