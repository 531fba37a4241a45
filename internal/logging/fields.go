package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ExportFields 提供导出器类型/模块/源文件/目标路径字段，供导出与查找日志复用。
func ExportFields(kind, module, source, target string) logrus.Fields {
	return logrus.Fields{
		"exporter": kind,
		"module":   module,
		"source":   source,
		"target":   target,
	}
}
