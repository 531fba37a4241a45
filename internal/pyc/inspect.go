package pyc

import (
	stderrors "errors"
	"io/fs"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
)

// Report 是单个缓存文件头部的可读摘要，供 CLI 与诊断接口输出。
type Report struct {
	Path        string `json:"path"`
	Source      string `json:"source,omitempty"`
	Magic       string `json:"magic"`
	Runtime     string `json:"runtime,omitempty"`
	Flags       uint32 `json:"flags"`
	Mode        Mode   `json:"invalidation"`
	SourceMtime uint32 `json:"source_mtime,omitempty"`
	SourceSize  uint32 `json:"source_size,omitempty"`
	SourceHash  string `json:"source_hash,omitempty"`
	PayloadSize int    `json:"payload_size"`
}

// Inspector 按指定宿主的规则定位并解析缓存文件，只读。
type Inspector struct {
	FS      billy.Filesystem
	Runtime Runtime
	Paths   PathOptions
}

// NewInspector 构造诊断用的只读解析器。
func NewInspector(filesystem billy.Filesystem, rt Runtime, paths PathOptions) *Inspector {
	return &Inspector{FS: filesystem, Runtime: rt, Paths: paths}
}

// CachePathFor 返回宿主 loader 会为 source 查找的缓存位置。
func (i *Inspector) CachePathFor(source string) (string, error) {
	return CacheFromSource(source, i.Runtime, i.Paths)
}

// Inspect 读取并解码 cachePath。文件不存在返回 CodeNotFound；
// 结构损坏或 magic 不属于任何已注册宿主返回 CodeForeignOrCorruptCache。
func (i *Inspector) Inspect(cachePath string) (*Report, error) {
	data, err := util.ReadFile(i.FS, cachePath)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapWithContext(err, errors.CodeNotFound, "cache file not found",
				map[string]interface{}{"path": cachePath})
		}
		return nil, err
	}

	header, payload, err := Decode(data)
	if err != nil {
		return nil, errors.WithContext(err, "path", cachePath)
	}

	report := &Report{
		Path:        cachePath,
		Magic:       MagicString(header.Magic),
		Flags:       header.Flags,
		Mode:        header.Mode(),
		PayloadSize: len(payload),
	}
	for _, rt := range Runtimes() {
		if rt.Magic() == header.Magic {
			report.Runtime = rt.Name
			break
		}
	}
	if report.Runtime == "" {
		return nil, corruptCache("cache magic %s belongs to no registered runtime", report.Magic)
	}

	switch desc := header.Descriptor.(type) {
	case Timestamp:
		report.SourceMtime = desc.SourceMtime
		report.SourceSize = desc.SourceSize
	case Hash:
		report.SourceHash = hashString(desc.Digest)
	}
	if source, err := SourceFromCache(cachePath, i.Paths); err == nil {
		report.Source = source
	}
	return report, nil
}
