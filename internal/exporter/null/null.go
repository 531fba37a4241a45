// Package null 提供禁用导出时使用的空导出器。
package null

import (
	"context"

	"github.com/any-hub/macro-export/internal/exporter"
)

func init() {
	exporter.MustRegister(exporter.KindMetadata{
		Kind:        exporter.KindNull,
		Description: "discard expanded modules; Find never matches",
		Factory: func(exporter.Options, exporter.Deps) (exporter.Exporter, error) {
			return New(), nil
		},
	})
}

// Exporter ignores every call.
type Exporter struct{}

// New returns the no-op exporter.
func New() *Exporter {
	return &Exporter{}
}

// ExportTransformed implements exporter.Exporter.
func (*Exporter) ExportTransformed(context.Context, exporter.Artifact) error {
	return nil
}

// Find implements exporter.Exporter.
func (*Exporter) Find(context.Context, exporter.FindRequest) (*exporter.LoadedModule, error) {
	return nil, nil
}
