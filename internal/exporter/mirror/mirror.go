// Package mirror 将宏展开后的模块以源码形式写回 Root 的镜像目录，便于调试与审阅。
//
// 镜像目录只用于人工检查，不会被 loader 读取，因此写入直接覆盖，不做原子替换。
package mirror

import (
	"context"
	stderrors "errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/macro-export/internal/exporter"
	"github.com/any-hub/macro-export/internal/logging"
)

func init() {
	exporter.MustRegister(exporter.KindMetadata{
		Kind:        exporter.KindMirror,
		Description: "regenerate expanded source into a fresh mirror of Root",
		Destructive: true,
		Factory: func(opts exporter.Options, deps exporter.Deps) (exporter.Exporter, error) {
			return New(opts, deps)
		},
	})
}

// Exporter mirrors Root into TargetDirectory and overwrites mirrored files
// with unparsed trees.
type Exporter struct {
	fs       billy.Filesystem
	root     string
	target   string
	unparser exporter.Unparser
	logger   logrus.FieldLogger
}

// New validates the directive without touching the filesystem; call
// Initialize before the first export.
func New(opts exporter.Options, deps exporter.Deps) (*Exporter, error) {
	if deps.FS == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "mirror exporter requires a filesystem")
	}
	if deps.Unparser == nil {
		return nil, errors.New(errors.CodeInvalidConfig, "mirror exporter requires an unparser")
	}
	if strings.TrimSpace(opts.Root) == "" || strings.TrimSpace(opts.TargetDirectory) == "" {
		return nil, errors.New(errors.CodeInvalidConfig, "mirror exporter requires Root and TargetDirectory")
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "resolve root")
	}
	target, err := filepath.Abs(opts.TargetDirectory)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "resolve target directory")
	}
	// 目标与 Root 互相包含时，清空目标会破坏 Root 或导致无限递归复制。
	if root == target || within(root, target) || within(target, root) {
		return nil, errors.Newf(errors.CodeInvalidConfig, "target directory %s overlaps root %s", target, root)
	}

	return &Exporter{
		fs:       deps.FS,
		root:     root,
		target:   target,
		unparser: deps.Unparser,
		logger:   deps.LoggerOrDefault(),
	}, nil
}

// Root returns the absolute mirrored root.
func (e *Exporter) Root() string { return e.root }

// TargetDirectory returns the absolute mirror location.
func (e *Exporter) TargetDirectory() string { return e.target }

// Initialize destroys TargetDirectory and recreates it as an exact copy of
// Root. Precondition: no other exporter shares TargetDirectory and no export
// call has started yet.
func (e *Exporter) Initialize(ctx context.Context) error {
	info, err := e.fs.Stat(e.root)
	if err != nil {
		return errors.WrapWithContext(err, errors.CodeInvalidConfig, "stat root", map[string]interface{}{"root": e.root})
	}
	if !info.IsDir() {
		return errors.Newf(errors.CodeInvalidConfig, "root %s is not a directory", e.root)
	}

	if err := util.RemoveAll(e.fs, e.target); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.WrapWithContext(err, exporter.CodeExportFailed, "reset mirror directory", map[string]interface{}{"target": e.target})
	}
	if err := e.copyDir(ctx, e.root, e.target, info.Mode().Perm()); err != nil {
		return errors.WrapWithContext(err, exporter.CodeExportFailed, "copy root into mirror", map[string]interface{}{
			"root":   e.root,
			"target": e.target,
		})
	}

	e.logger.WithFields(logrus.Fields{
		"action": "mirror_init",
		"root":   e.root,
		"target": e.target,
	}).Debug("mirror directory recreated")
	return nil
}

// ExportTransformed overwrites the mirrored copy of SourcePath with the
// unparsed tree. Sources outside Root are skipped silently.
func (e *Exporter) ExportTransformed(_ context.Context, artifact exporter.Artifact) error {
	fields := logging.ExportFields(string(exporter.KindMirror), artifact.ModuleName, artifact.SourcePath, "")
	e.logger.WithFields(fields).Debug("export requested")

	source, err := filepath.Abs(artifact.SourcePath)
	if err != nil || !within(e.root, source) {
		e.logger.WithFields(fields).Debug("skipped out of root")
		return nil
	}
	rel, err := filepath.Rel(e.root, source)
	if err != nil {
		return nil
	}

	text, err := e.unparser.Unparse(artifact.Tree)
	if err != nil {
		return errors.WrapWithContext(err, exporter.CodeExportFailed, "unparse tree", map[string]interface{}{"module": artifact.ModuleName})
	}

	target := filepath.Join(e.target, rel)
	perm := os.FileMode(0o644)
	if info, statErr := e.fs.Stat(target); statErr == nil {
		perm = info.Mode().Perm()
	}
	if err := e.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.WrapWithContext(err, exporter.CodeExportFailed, "create mirror directory", map[string]interface{}{"target": target})
	}
	if err := util.WriteFile(e.fs, target, []byte(text), perm); err != nil {
		return errors.WrapWithContext(err, exporter.CodeExportFailed, "write mirrored source", map[string]interface{}{"target": target})
	}

	fields["target"] = target
	e.logger.WithFields(fields).Debug("exported")
	return nil
}

// Find is not supported by the mirror; it never matches.
func (e *Exporter) Find(context.Context, exporter.FindRequest) (*exporter.LoadedModule, error) {
	return nil, nil
}

func (e *Exporter) copyDir(ctx context.Context, src, dst string, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.fs.MkdirAll(dst, perm); err != nil {
		return err
	}

	entries, err := e.fs.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		info := entry
		if entry.Mode()&os.ModeSymlink != 0 {
			// 与 copytree 默认行为一致：跟随符号链接复制其内容。
			if info, err = e.fs.Stat(from); err != nil {
				return err
			}
		}

		if info.IsDir() {
			err = e.copyDir(ctx, from, to, info.Mode().Perm())
		} else {
			err = e.copyFile(from, to, info.Mode().Perm())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) copyFile(src, dst string, perm os.FileMode) error {
	in, err := e.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := e.fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	return err
}

// within reports whether path lies strictly below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}
