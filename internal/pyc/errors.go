package pyc

import "github.com/jmgilman/go/errors"

const (
	// CodeSourceUnavailable 表示导出时源文件无法 stat 或读取，属于构建配置错误。
	CodeSourceUnavailable errors.ErrorCode = "SOURCE_UNAVAILABLE"

	// CodeForeignOrCorruptCache 表示缓存文件结构不符合预期（截断、magic 不匹配、未知 flags）。
	CodeForeignOrCorruptCache errors.ErrorCode = "FOREIGN_OR_CORRUPT_CACHE"
)

func sourceUnavailable(err error, path string) error {
	return errors.WrapWithContext(err, CodeSourceUnavailable, "source file unavailable", map[string]interface{}{
		"source_path": path,
	})
}

func corruptCache(format string, args ...interface{}) error {
	return errors.Newf(CodeForeignOrCorruptCache, format, args...)
}
