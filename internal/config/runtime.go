package config

import (
	"fmt"

	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/pyc"
)

// ExporterRuntime 将导出配置与导出器元数据、宿主描述合并，方便运行时和诊断端快速取用。
type ExporterRuntime struct {
	Config  ExporterConfig
	Kind    exporter.KindMetadata
	Runtime pyc.Runtime
}

// BuildExporterRuntime 解析配置中的导出器类型与宿主，要求对应导出器已注册。
func BuildExporterRuntime(cfg ExporterConfig) (ExporterRuntime, error) {
	meta, ok := exporter.Resolve(cfg.KindValue())
	if !ok {
		return ExporterRuntime{}, fmt.Errorf("导出器未注册: %s", cfg.KindValue())
	}
	rt, ok := pyc.ResolveRuntime(cfg.Runtime)
	if !ok {
		return ExporterRuntime{}, newFieldError(exporterField("Runtime"), fmt.Sprintf("未注册宿主: %s", cfg.Runtime))
	}
	return ExporterRuntime{Config: cfg, Kind: meta, Runtime: rt}, nil
}

// Options 返回导出器构造参数。
func (r ExporterRuntime) Options() exporter.Options {
	return r.Config.Options()
}

// Build 通过注册表构建导出器实例。
func (r ExporterRuntime) Build(deps exporter.Deps) (exporter.Exporter, error) {
	return r.Kind.Factory(r.Options(), deps)
}

// Inspector 返回与导出器使用同一宿主和路径规则的只读解析器。
func (r ExporterRuntime) Inspector(deps exporter.Deps) *pyc.Inspector {
	return pyc.NewInspector(deps.FS, r.Runtime, r.Config.PathOptions())
}
