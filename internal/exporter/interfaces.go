package exporter

import (
	"context"
	"fmt"

	"github.com/go-git/go-billy/v5"
	"github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/macro-export/internal/cache"
	"github.com/any-hub/macro-export/internal/pyc"
)

// CodeExportFailed 标记产物序列化或源码再生成失败。
const CodeExportFailed errors.ErrorCode = "EXPORT_FAILED"

// Exporter is the contract invoked by the loader pipeline after expansion and
// compilation. Find returning (nil, nil) means "no match, compile afresh".
type Exporter interface {
	ExportTransformed(ctx context.Context, artifact Artifact) error
	Find(ctx context.Context, req FindRequest) (*LoadedModule, error)
}

// Initializer is implemented by exporters that need a one-shot setup step
// before the first export. It must not run concurrently with other exporters.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Initialize runs the setup step when e implements Initializer.
func Initialize(ctx context.Context, e Exporter) error {
	if initializer, ok := e.(Initializer); ok {
		return initializer.Initialize(ctx)
	}
	return nil
}

// CodeObject is the compiled artifact handle; only the host knows how to
// serialize it.
type CodeObject interface {
	MarshalCode() ([]byte, error)
}

// RawCode is a CodeObject whose serialized form is already known.
type RawCode []byte

// MarshalCode implements CodeObject.
func (c RawCode) MarshalCode() ([]byte, error) {
	return []byte(c), nil
}

// Unparser regenerates source text from a syntax tree.
type Unparser interface {
	Unparse(tree any) (string, error)
}

// UnparserFunc adapts a function to the Unparser interface.
type UnparserFunc func(tree any) (string, error)

// Unparse makes UnparserFunc satisfy Unparser.
func (f UnparserFunc) Unparse(tree any) (string, error) {
	return f(tree)
}

// TextUnparser treats string and []byte trees as already-regenerated source.
var TextUnparser Unparser = UnparserFunc(func(tree any) (string, error) {
	switch v := tree.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("cannot unparse tree of type %T", tree)
	}
})

// Artifact is the result of expanding and compiling one module. Exporters
// borrow it for a single call and never retain it.
type Artifact struct {
	Code       CodeObject
	Tree       any
	ModuleName string
	SourcePath string
}

// FindRequest asks an exporter whether a cached artifact can short-circuit a load.
type FindRequest struct {
	SourcePath string
	// CandidatePath + Suffix names the cache file explicitly; when Suffix is
	// empty the exporter derives the path the host loader would use.
	CandidatePath string
	Suffix        string
	ModuleName    string
	PackagePath   string
}

// LoadedModule is the handle returned by a successful Find.
type LoadedModule struct {
	Name        string     `json:"name"`
	PackagePath string     `json:"package_path,omitempty"`
	SourcePath  string     `json:"source_path"`
	CachePath   string     `json:"cache_path"`
	Header      pyc.Header `json:"-"`
	Code        []byte     `json:"-"`
}

// Options is the per-instance export directive.
type Options struct {
	Root            string
	TargetDirectory string
	Runtime         string
	Invalidation    pyc.Mode
	Paths           pyc.PathOptions
}

// Deps carries collaborators shared by all exporter kinds.
type Deps struct {
	FS       billy.Filesystem
	Logger   logrus.FieldLogger
	Unparser Unparser
	Store    cache.Store
}

// LoggerOrDefault returns the injected logger or the logrus standard logger.
func (d Deps) LoggerOrDefault() logrus.FieldLogger {
	if d.Logger != nil {
		return d.Logger
	}
	return logrus.StandardLogger()
}
