package cache

import (
	"bytes"
	"context"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/jmgilman/go/errors"
)

// ErrStoreUnavailable 表示调用方未注入缓存存储实例。
var ErrStoreUnavailable = errors.New(errors.CodeInvalidConfig, "cache store unavailable")

// SourceMode 复刻宿主 _calc_mode：沿用源文件权限并补上属主写位，源文件无法 stat 时退回 0o666。
// 返回值已按 0o666 掩码，缓存文件不会继承执行位。
func SourceMode(filesystem billy.Filesystem, sourcePath string) os.FileMode {
	mode := os.FileMode(0o666)
	if filesystem != nil {
		if info, err := filesystem.Stat(sourcePath); err == nil {
			mode = info.Mode().Perm()
		}
	}
	mode |= 0o200
	return mode & 0o666
}

// ModeWriter 组合 Store 与源文件权限推导，写入的缓存文件权限与源文件相对应。
type ModeWriter struct {
	store Store
	fs    billy.Filesystem
}

// NewModeWriter 构造权限感知的写入器，fs 用于 stat 源文件。
func NewModeWriter(store Store, filesystem billy.Filesystem) ModeWriter {
	return ModeWriter{store: store, fs: filesystem}
}

// Enabled 返回当前是否具备缓存写入能力。
func (w ModeWriter) Enabled() bool {
	return w.store != nil
}

// Put 以 sourcePath 推导的权限原子写入 cachePath。
func (w ModeWriter) Put(ctx context.Context, cachePath, sourcePath string, data []byte) (*Entry, error) {
	if w.store == nil {
		return nil, ErrStoreUnavailable
	}
	return w.store.Put(ctx, cachePath, bytes.NewReader(data), PutOptions{
		Perm: SourceMode(w.fs, sourcePath),
	})
}
