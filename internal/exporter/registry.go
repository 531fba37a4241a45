package exporter

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Kind 为封闭的导出器类型集合。
type Kind string

const (
	KindNull          Kind = "null"
	KindMirror        Kind = "mirror"
	KindCompiledCache Kind = "pyc"
)

var knownKinds = map[Kind]struct{}{
	KindNull:          {},
	KindMirror:        {},
	KindCompiledCache: {},
}

// Factory 根据导出指令与依赖构建导出器实例。
type Factory func(Options, Deps) (Exporter, error)

// KindMetadata 记录一种导出器的静态信息，供配置校验和诊断端使用。
type KindMetadata struct {
	Kind        Kind
	Description string
	// Destructive 表示 Initialize 会清空目标目录。
	Destructive bool
	Factory     Factory
}

// DefaultKind 返回未配置时使用的导出器类型。
func DefaultKind() Kind {
	return KindNull
}

// ParseKind 标准化配置中的类型名，只接受内置的三种。
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if kind == "" {
		return DefaultKind(), nil
	}
	if _, ok := knownKinds[kind]; !ok {
		return "", fmt.Errorf("unsupported exporter kind: %s", raw)
	}
	return kind, nil
}

var globalRegistry = newRegistry()

type registry struct {
	mu    sync.RWMutex
	kinds map[Kind]KindMetadata
}

func newRegistry() *registry {
	return &registry{kinds: make(map[Kind]KindMetadata)}
}

// Register 将导出器类型加入全局注册表，未知类型或重复注册返回错误。
func Register(meta KindMetadata) error {
	return globalRegistry.register(meta)
}

// MustRegister 在注册失败时 panic，适合子包 init() 中调用。
func MustRegister(meta KindMetadata) {
	if err := Register(meta); err != nil {
		panic(err)
	}
}

// Resolve 返回指定类型的元数据。
func Resolve(kind Kind) (KindMetadata, bool) {
	return globalRegistry.resolve(kind)
}

// List 返回按类型名排序的元数据列表。
func List() []KindMetadata {
	return globalRegistry.list()
}

// Keys 返回所有已注册类型名，供诊断使用。
func Keys() []string {
	items := List()
	result := make([]string, len(items))
	for i, meta := range items {
		result[i] = string(meta.Kind)
	}
	return result
}

// New 通过注册表构建导出器。
func New(kind Kind, opts Options, deps Deps) (Exporter, error) {
	meta, ok := Resolve(kind)
	if !ok {
		return nil, fmt.Errorf("exporter kind %q not registered", kind)
	}
	return meta.Factory(opts, deps)
}

func (r *registry) register(meta KindMetadata) error {
	if strings.TrimSpace(string(meta.Kind)) == "" {
		return fmt.Errorf("exporter kind is required")
	}
	kind, err := ParseKind(string(meta.Kind))
	if err != nil {
		return err
	}
	if meta.Factory == nil {
		return fmt.Errorf("exporter %s: factory is required", kind)
	}
	meta.Kind = kind

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.kinds[kind]; exists {
		return fmt.Errorf("exporter %s already registered", kind)
	}
	r.kinds[kind] = meta
	return nil
}

func (r *registry) resolve(kind Kind) (KindMetadata, bool) {
	normalized := Kind(strings.ToLower(strings.TrimSpace(string(kind))))
	if normalized == "" {
		return KindMetadata{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	meta, ok := r.kinds[normalized]
	return meta, ok
}

func (r *registry) list() []KindMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.kinds) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.kinds))
	for kind := range r.kinds {
		keys = append(keys, string(kind))
	}
	sort.Strings(keys)

	result := make([]KindMetadata, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.kinds[Kind(key)])
	}
	return result
}
