package cache

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
	"github.com/jmgilman/go/errors"
)

// NewStore 以 billy 文件系统构建缓存存储，进程内复用一份实例以共享写锁。
func NewStore(filesystem billy.Filesystem) (Store, error) {
	if filesystem == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "cache filesystem required")
	}
	return &fileStore{
		fs:    filesystem,
		locks: make(map[string]*entryLock),
	}, nil
}

// fileStore 通过 entryLock 避免同一路径在进程内并发写入；跨进程不加锁，最后一次 rename 生效。
type fileStore struct {
	fs billy.Filesystem

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Get(ctx context.Context, path string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := s.fs.Open(filePath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry:  entryFromInfo(filePath, info),
		Reader: f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, path string, body io.Reader, opts PutOptions) (*Entry, error) {
	filePath, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	unlock := s.lockEntry(filePath)
	defer unlock()

	dir := filepath.Dir(filePath)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, writeFailure(err, "create cache directory", filePath)
	}

	perm := opts.Perm
	if perm == 0 {
		perm = 0o644
	}

	// 临时文件必须与目标同目录，保证 rename 不跨文件系统。
	tempName := filePath + "." + uuid.NewString()[:8] + ".tmp"
	tempFile, err := s.fs.OpenFile(tempName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return nil, writeFailure(err, "create temp file", filePath)
	}

	_, err = copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(tempName)
		return nil, writeFailure(err, "write temp file", filePath)
	}

	if err := s.fs.Rename(tempName, filePath); err != nil {
		_ = s.fs.Remove(tempName)
		return nil, writeFailure(err, "replace cache file", filePath)
	}

	info, err := s.fs.Stat(filePath)
	if err != nil {
		return nil, writeFailure(err, "stat cache file", filePath)
	}
	entry := entryFromInfo(filePath, info)
	return &entry, nil
}

func (s *fileStore) Remove(ctx context.Context, path string) error {
	filePath, err := cleanPath(path)
	if err != nil {
		return err
	}

	unlock := s.lockEntry(filePath)
	defer unlock()

	if err := s.fs.Remove(filePath); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func cleanPath(path string) (string, error) {
	if path == "" {
		return "", errors.New(errors.CodeInvalidInput, "cache path required")
	}
	cleaned := filepath.Clean(path)
	if !filepath.IsAbs(cleaned) {
		return "", errors.Newf(errors.CodeInvalidInput, "cache path must be absolute: %s", path)
	}
	return cleaned, nil
}

func entryFromInfo(path string, info fs.FileInfo) Entry {
	return Entry{
		FilePath:  path,
		SizeBytes: info.Size(),
		Mode:      info.Mode().Perm(),
		ModTime:   info.ModTime(),
	}
}

func writeFailure(err error, step, path string) error {
	return errors.WrapWithContext(err, CodeWriteFailure, step, map[string]interface{}{
		"cache_path": path,
	})
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
