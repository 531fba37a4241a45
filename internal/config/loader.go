package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/pyc"
)

// Load 读取并解析 TOML 配置文件，同时注入默认值与校验逻辑。
// Invalidation 留空时在此处读取一次 SOURCE_DATE_EPOCH，之后不再查询环境。
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

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(modeDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyGlobalDefaults(&cfg.Global)
	applyExporterDefaults(&cfg.Exporter, pyc.DecideFromEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := absolutize(&cfg.Exporter); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 5000)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Exporter.Kind", string(exporter.DefaultKind()))
	v.SetDefault("Exporter.Root", ".")
	v.SetDefault("Exporter.Runtime", pyc.DefaultRuntimeName)
}

func applyGlobalDefaults(g *GlobalConfig) {
	if g.ListenPort == 0 {
		g.ListenPort = 5000
	}
	if strings.TrimSpace(g.LogLevel) == "" {
		g.LogLevel = "info"
	}
}

// applyExporterDefaults 标准化导出指令；decide 仅在 Invalidation 未配置时调用。
func applyExporterDefaults(e *ExporterConfig, decide func() pyc.Mode) {
	e.Kind = strings.ToLower(strings.TrimSpace(e.Kind))
	if e.Kind == "" {
		e.Kind = string(exporter.DefaultKind())
	}
	e.Runtime = strings.ToLower(strings.TrimSpace(e.Runtime))
	if e.Runtime == "" {
		e.Runtime = pyc.DefaultRuntimeName
	}
	if strings.TrimSpace(e.Root) == "" {
		e.Root = "."
	}
	if e.Invalidation == "" && decide != nil {
		e.Invalidation = decide()
	}
	e.Optimization = strings.TrimSpace(e.Optimization)
}

func absolutize(e *ExporterConfig) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"Root", &e.Root},
		{"TargetDirectory", &e.TargetDirectory},
		{"PycachePrefix", &e.PycachePrefix},
	}
	for _, field := range fields {
		if *field.value == "" {
			continue
		}
		abs, err := filepath.Abs(*field.value)
		if err != nil {
			return fmt.Errorf("无法解析路径 %s: %w", exporterField(field.name), err)
		}
		*field.value = abs
	}
	return nil
}

// modeDecodeHook 允许 Invalidation 以 checked_hash、CHECKED-HASH 等写法出现。
func modeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(pyc.Mode(""))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return pyc.Mode(""), nil
			}
			mode, err := pyc.ParseMode(v)
			if err != nil {
				return nil, newFieldError(exporterField("Invalidation"), "仅支持 timestamp/checked-hash/unchecked-hash")
			}
			return mode, nil
		case pyc.Mode:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Invalidation 类型: %T", v)
		}
	}
}
