package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	if err := rejectProjectLevelPaths(v); err != nil {
		return nil, err
	}

	var cfg Config
	decodeHooks := mapstructure.ComposeDecodeHookFunc(durationDecodeHook(), byteSizeDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHooks)); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absMedia, err := filepath.Abs(cfg.Global.MediaRoot)
	if err != nil {
		return nil, fmt.Errorf("无法解析媒体目录: %w", err)
	}
	cfg.Global.MediaRoot = absMedia

	absDB, err := filepath.Abs(cfg.Global.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("无法解析数据库路径: %w", err)
	}
	cfg.Global.DatabasePath = absDB

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("MediaRoot", "./media")
	v.SetDefault("DatabasePath", "./data/codefolio.db")
	v.SetDefault("MaxArchiveEntries", 10000)
	v.SetDefault("MaxArchiveSize", "512MB")
	v.SetDefault("ReadTimeout", "30s")
	v.SetDefault("WriteTimeout", "30s")
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if g.ReadTimeout.DurationValue() == 0 {
		g.ReadTimeout = Duration(30 * time.Second)
	}
	if g.WriteTimeout.DurationValue() == 0 {
		g.WriteTimeout = Duration(30 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(ByteSize(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			parsed, err := parseByteSize(v)
			if err != nil {
				return nil, fmt.Errorf("无法解析 ByteSize 字段: %w", err)
			}
			return parsed, nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(int64(v)), nil
		case ByteSize:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 ByteSize 类型: %T", v)
		}
	}
}

// rejectProjectLevelPaths 拒绝在 [[Project]] 中声明 CacheDir，缓存目录只能由 MediaRoot 推导。
func rejectProjectLevelPaths(v *viper.Viper) error {
	raw := v.Get("Project")
	projects, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	for idx, entry := range projects {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if _, exists := lookupFold(m, "CacheDir"); exists {
			name := fmt.Sprintf("#%d", idx)
			if rawID, ok := lookupFold(m, "ID"); ok {
				name = fmt.Sprintf("%v", rawID)
			}
			return newFieldError(projectField(name, "CacheDir"), "不支持按项目配置，缓存目录固定为 MediaRoot/zip_cache/<ID>")
		}
	}

	return nil
}

// lookupFold 忽略大小写查找键，Viper 可能已将嵌套表的键转为小写。
func lookupFold(m map[string]interface{}, key string) (interface{}, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}
