package pyc

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	CacheDirName    = "__pycache__"
	BytecodeSuffix  = ".pyc"
	SourceSuffix    = ".py"
	optimizationTag = "opt-"
)

// PathOptions 对应 importlib 推导缓存路径时读取的进程级设置。
type PathOptions struct {
	// Optimization 为空表示未优化；否则追加 ".opt-<level>"，level 只允许字母数字。
	Optimization string
	// PycachePrefix 对应 sys.pycache_prefix，非空时缓存写入独立目录树。
	PycachePrefix string
}

// CacheFromSource 复刻 importlib.util.cache_from_source 的映射规则：
//
//	/a/b/mod.py -> /a/b/__pycache__/mod.<tag>[.opt-N].pyc
//
// 与宿主的任何偏差都会让 loader 看不到导出的缓存，因此连无扩展名文件的拼接方式也保持一致。
func CacheFromSource(source string, rt Runtime, opts PathOptions) (string, error) {
	if strings.TrimSpace(rt.CacheTag) == "" {
		return "", fmt.Errorf("runtime %q has no cache tag", rt.Name)
	}
	if source == "" {
		return "", fmt.Errorf("source path required")
	}

	head, tail := filepath.Split(source)
	head = strings.TrimSuffix(head, string(filepath.Separator))
	if head == "" && strings.HasPrefix(source, string(filepath.Separator)) {
		head = string(filepath.Separator)
	}

	base, sep, rest := rpartition(tail, ".")
	stem := base
	if stem == "" {
		stem = rest
	}
	almost := stem + sep + rt.CacheTag

	if opts.Optimization != "" {
		if !isAlnum(opts.Optimization) {
			return "", fmt.Errorf("%q is not an alphanumeric optimization level", opts.Optimization)
		}
		almost += "." + optimizationTag + opts.Optimization
	}
	filename := almost + BytecodeSuffix

	if opts.PycachePrefix != "" {
		if !filepath.IsAbs(head) {
			abs, err := filepath.Abs(head)
			if err != nil {
				return "", fmt.Errorf("resolve source directory: %w", err)
			}
			head = abs
		}
		head = strings.TrimLeft(head, string(filepath.Separator))
		return filepath.Join(opts.PycachePrefix, head, filename), nil
	}
	return filepath.Join(head, CacheDirName, filename), nil
}

// SourceFromCache 为 CacheFromSource 的逆运算，仅用于诊断输出。
func SourceFromCache(cachePath string, opts PathOptions) (string, error) {
	head, filename := filepath.Split(cachePath)
	head = filepath.Clean(head)

	if opts.PycachePrefix != "" {
		prefix := filepath.Clean(opts.PycachePrefix)
		rel, err := filepath.Rel(prefix, head)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			head = string(filepath.Separator) + rel
		} else {
			return "", fmt.Errorf("%s not below pycache prefix %s", cachePath, prefix)
		}
	} else {
		parent, dir := filepath.Split(head)
		if dir != CacheDirName {
			return "", fmt.Errorf("%s not in a %s directory", cachePath, CacheDirName)
		}
		head = filepath.Clean(parent)
	}

	dots := strings.Count(filename, ".")
	switch dots {
	case 2:
	case 3:
		parts := strings.Split(filename, ".")
		level := parts[2]
		if !strings.HasPrefix(level, optimizationTag) {
			return "", fmt.Errorf("optimization portion of filename does not start with %q", optimizationTag)
		}
		if strings.TrimPrefix(level, optimizationTag) == "" {
			return "", fmt.Errorf("optimization level %q is empty", level)
		}
	default:
		return "", fmt.Errorf("expected only 2 or 3 dots in %q", filename)
	}

	base, _, _ := strings.Cut(filename, ".")
	return filepath.Join(head, base+SourceSuffix), nil
}

func rpartition(s, sep string) (string, string, string) {
	idx := strings.LastIndex(s, sep)
	if idx < 0 {
		return "", "", s
	}
	return s[:idx], sep, s[idx+len(sep):]
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
