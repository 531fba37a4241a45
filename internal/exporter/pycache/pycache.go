// Package pycache 把宏展开后的代码对象写成宿主解释器自己的 __pycache__ 缓存，
// 使不知道本工具存在的 loader 也能直接加载展开结果。
package pycache

import (
	"context"
	stderrors "errors"
	"io"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/macro-export/internal/cache"
	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/logging"
	"github.com/any-hub/macro-export/internal/pyc"
)

func init() {
	exporter.MustRegister(exporter.KindMetadata{
		Kind:        exporter.KindCompiledCache,
		Description: "write host-compatible compiled caches next to each source",
		Factory: func(opts exporter.Options, deps exporter.Deps) (exporter.Exporter, error) {
			return New(opts, deps)
		},
	})
}

// Exporter writes bit-exact host caches and can short-circuit later loads.
type Exporter struct {
	fs      billy.Filesystem
	root    string
	runtime pyc.Runtime
	mode    pyc.Mode
	encoder *pyc.Encoder
	store   cache.Store
	writer  cache.ModeWriter
	logger  logrus.FieldLogger
}

// New resolves the host runtime profile and takes the invalidation mode as
// decided by the caller at startup.
func New(opts exporter.Options, deps exporter.Deps) (*Exporter, error) {
	if deps.FS == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "pyc exporter requires a filesystem")
	}

	name := opts.Runtime
	if name == "" {
		name = pyc.DefaultRuntimeName
	}
	rt, ok := pyc.ResolveRuntime(name)
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown host runtime %q", name)
	}

	mode, err := pyc.ParseMode(string(opts.Invalidation))
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid invalidation mode")
	}

	store := deps.Store
	if store == nil {
		if store, err = cache.NewStore(deps.FS); err != nil {
			return nil, err
		}
	}

	root := opts.Root
	if root != "" {
		if root, err = filepath.Abs(root); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidConfig, "resolve root")
		}
	}

	return &Exporter{
		fs:      deps.FS,
		root:    root,
		runtime: rt,
		mode:    mode,
		encoder: pyc.NewEncoder(deps.FS, rt, opts.Paths),
		store:   store,
		writer:  cache.NewModeWriter(store, deps.FS),
		logger:  deps.LoggerOrDefault(),
	}, nil
}

// Runtime returns the host runtime profile caches are written for.
func (e *Exporter) Runtime() pyc.Runtime { return e.runtime }

// Mode returns the invalidation mode used for new caches.
func (e *Exporter) Mode() pyc.Mode { return e.mode }

// Root returns the configured project root (informational).
func (e *Exporter) Root() string { return e.root }

// CachePathFor returns where the host loader looks for sourcePath's cache.
func (e *Exporter) CachePathFor(sourcePath string) (string, error) {
	source, err := filepath.Abs(sourcePath)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidInput, "resolve source path")
	}
	return e.encoder.CachePathFor(source)
}

// ExportTransformed encodes the artifact against the current source state and
// atomically replaces the cache file.
func (e *Exporter) ExportTransformed(ctx context.Context, artifact exporter.Artifact) error {
	if artifact.Code == nil {
		return errors.New(exporter.CodeExportFailed, "artifact has no compiled code")
	}
	source, err := filepath.Abs(artifact.SourcePath)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "resolve source path")
	}

	cachePath, err := e.encoder.CachePathFor(source)
	if err != nil {
		return errors.Wrap(err, exporter.CodeExportFailed, "derive cache path")
	}
	fields := logging.ExportFields(string(exporter.KindCompiledCache), artifact.ModuleName, source, cachePath)
	fields["invalidation"] = string(e.mode)
	e.logger.WithFields(fields).Debug("export requested")

	code, err := artifact.Code.MarshalCode()
	if err != nil {
		return errors.WrapWithContext(err, exporter.CodeExportFailed, "marshal code", map[string]interface{}{"module": artifact.ModuleName})
	}

	data, err := e.encoder.Encode(code, source, e.mode)
	if err != nil {
		return err
	}

	entry, err := e.writer.Put(ctx, cachePath, source, data)
	if err != nil {
		return err
	}

	fields["size_bytes"] = entry.SizeBytes
	e.logger.WithFields(fields).Debug("exported")
	return nil
}

// Find returns the cached artifact for req.SourcePath when it is still valid
// for the current source. A missing or stale cache yields (nil, nil); a cache
// that cannot be decoded for this runtime is a hard error.
func (e *Exporter) Find(ctx context.Context, req exporter.FindRequest) (*exporter.LoadedModule, error) {
	source, err := filepath.Abs(req.SourcePath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "resolve source path")
	}
	sourceInfo, err := e.fs.Stat(source)
	if err != nil {
		return nil, pyc.SourceUnavailable(err, source)
	}

	cachePath, err := e.locate(source, req)
	if err != nil {
		return nil, err
	}
	fields := logging.ExportFields(string(exporter.KindCompiledCache), req.ModuleName, source, cachePath)

	result, err := e.store.Get(ctx, cachePath)
	if err != nil {
		if stderrors.Is(err, cache.ErrNotFound) {
			e.logger.WithFields(fields).Debug("cache missing")
			return nil, nil
		}
		return nil, err
	}
	defer result.Reader.Close()

	if sourceInfo.ModTime().After(result.Entry.ModTime) {
		e.logger.WithFields(fields).Debug("cache stale")
		return nil, nil
	}

	data, err := io.ReadAll(result.Reader)
	if err != nil {
		return nil, err
	}
	header, code, err := pyc.Decode(data)
	if err != nil {
		return nil, errors.WithContext(err, "cache_path", cachePath)
	}
	if err := pyc.CheckMagic(header, e.runtime); err != nil {
		return nil, errors.WithContext(err, "cache_path", cachePath)
	}

	fresh, err := e.matchesSource(header, source)
	if err != nil {
		return nil, err
	}
	if !fresh {
		e.logger.WithFields(fields).Debug("cache stale")
		return nil, nil
	}

	e.logger.WithFields(fields).Debug("cache hit")
	return &exporter.LoadedModule{
		Name:        req.ModuleName,
		PackagePath: req.PackagePath,
		SourcePath:  source,
		CachePath:   cachePath,
		Header:      header,
		Code:        code,
	}, nil
}

func (e *Exporter) locate(source string, req exporter.FindRequest) (string, error) {
	if req.Suffix == "" {
		return e.encoder.CachePathFor(source)
	}
	candidate := req.CandidatePath
	if candidate == "" {
		candidate = source
	}
	abs, err := filepath.Abs(candidate + req.Suffix)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeInvalidInput, "resolve candidate path")
	}
	return abs, nil
}

// matchesSource 以 loader 相同的规则校验描述符：时间戳需 mtime/size 一致，
// checked-hash 需重新计算哈希，unchecked-hash 无条件信任。
func (e *Exporter) matchesSource(header pyc.Header, source string) (bool, error) {
	switch desc := header.Descriptor.(type) {
	case pyc.Timestamp:
		current, err := e.encoder.Describe(source, pyc.ModeTimestamp)
		if err != nil {
			return false, err
		}
		return current == desc, nil
	case pyc.Hash:
		if !desc.Checked {
			return true, nil
		}
		current, err := e.encoder.Describe(source, pyc.ModeCheckedHash)
		if err != nil {
			return false, err
		}
		return current.(pyc.Hash).Digest == desc.Digest, nil
	default:
		return false, errors.Newf(pyc.CodeForeignOrCorruptCache, "unknown descriptor %T", header.Descriptor)
	}
}
