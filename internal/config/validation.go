package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/pyc"
)

// Validate 针对语义级别做进一步校验，防止非法配置进入导出流程。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", fmt.Sprintf("无法识别: %s", g.LogLevel))
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}

	return c.Exporter.validate()
}

func (e *ExporterConfig) validate() error {
	kind, err := exporter.ParseKind(e.Kind)
	if err != nil {
		return newFieldError(exporterField("Kind"), "仅支持 null/mirror/pyc")
	}
	e.Kind = string(kind)

	if _, ok := pyc.ResolveRuntime(e.Runtime); !ok {
		return newFieldError(exporterField("Runtime"), fmt.Sprintf("未注册宿主: %s", e.Runtime))
	}

	mode, err := pyc.ParseMode(string(e.Invalidation))
	if err != nil {
		return newFieldError(exporterField("Invalidation"), "仅支持 timestamp/checked-hash/unchecked-hash")
	}
	e.Invalidation = mode

	if e.Optimization != "" && !alnum(e.Optimization) {
		return newFieldError(exporterField("Optimization"), "只允许字母与数字")
	}

	if kind == exporter.KindMirror {
		if strings.TrimSpace(e.TargetDirectory) == "" {
			return newFieldError(exporterField("TargetDirectory"), "mirror 导出器必须配置")
		}
		if err := validateMirrorDirs(e.Root, e.TargetDirectory); err != nil {
			return fmt.Errorf("%s: %w", exporterField("TargetDirectory"), err)
		}
	}
	return nil
}

// validateMirrorDirs 拒绝与 Root 重叠的目标目录，Initialize 会整体清空目标目录。
func validateMirrorDirs(root, target string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	if absRoot == absTarget {
		return errors.New("不能与 Root 相同")
	}
	if nested(absRoot, absTarget) || nested(absTarget, absRoot) {
		return errors.New("不能与 Root 互相嵌套")
	}
	return nil
}

func nested(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func alnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
