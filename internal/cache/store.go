package cache

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/jmgilman/go/errors"
)

// Store 负责缓存文件的读写，路径即宿主 loader 查找的绝对缓存路径。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, path string) (*ReadResult, error)

	// Put 通过临时文件 + rename 原子替换 path，失败时清理临时文件且不影响旧文件。
	Put(ctx context.Context, path string, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除缓存文件，不存在时视为成功。
	Remove(ctx context.Context, path string) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	// Perm 为创建临时文件时使用的权限（受 umask 影响），零值时使用 0o644。
	Perm os.FileMode
}

// Entry 表示一次缓存命中结果，包含文件路径及文件信息。
type Entry struct {
	FilePath  string      `json:"file_path"`
	SizeBytes int64       `json:"size_bytes"`
	Mode      os.FileMode `json:"mode"`
	ModTime   time.Time   `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadCloser
}

// CodeWriteFailure 标记原子写入过程中的任何 I/O 错误。
const CodeWriteFailure errors.ErrorCode = "WRITE_FAILURE"

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New(errors.CodeNotFound, "cache entry not found")
