package config

import (
	"strings"

	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/pyc"
)

// GlobalConfig 描述全局运行时行为：日志与诊断服务端口。
type GlobalConfig struct {
	ListenPort    int    `mapstructure:"ListenPort"`
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// ExporterConfig 对应 [Exporter] 表，即一次导出指令。
type ExporterConfig struct {
	Kind            string   `mapstructure:"Kind"`
	Root            string   `mapstructure:"Root"`
	TargetDirectory string   `mapstructure:"TargetDirectory"`
	Runtime         string   `mapstructure:"Runtime"`
	Invalidation    pyc.Mode `mapstructure:"Invalidation"`
	Optimization    string   `mapstructure:"Optimization"`
	PycachePrefix   string   `mapstructure:"PycachePrefix"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Exporter ExporterConfig `mapstructure:"Exporter"`
}

// KindValue 返回标准化后的导出器类型（假定 Validate 已经通过）。
func (e ExporterConfig) KindValue() exporter.Kind {
	kind, err := exporter.ParseKind(e.Kind)
	if err != nil {
		return exporter.DefaultKind()
	}
	return kind
}

// PathOptions 返回推导缓存路径所需的进程级设置。
func (e ExporterConfig) PathOptions() pyc.PathOptions {
	return pyc.PathOptions{
		Optimization:  strings.TrimSpace(e.Optimization),
		PycachePrefix: e.PycachePrefix,
	}
}

// Options 将配置转换为导出器构造参数。
func (e ExporterConfig) Options() exporter.Options {
	return exporter.Options{
		Root:            e.Root,
		TargetDirectory: e.TargetDirectory,
		Runtime:         e.Runtime,
		Invalidation:    e.Invalidation,
		Paths:           e.PathOptions(),
	}
}
