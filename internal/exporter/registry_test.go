package exporter

import (
	"context"
	"testing"
)

func replaceRegistry(t *testing.T) func() {
	t.Helper()
	prev := globalRegistry
	globalRegistry = newRegistry()
	return func() { globalRegistry = prev }
}

type stubExporter struct{}

func (stubExporter) ExportTransformed(context.Context, Artifact) error { return nil }

func (stubExporter) Find(context.Context, FindRequest) (*LoadedModule, error) { return nil, nil }

func stubFactory(Options, Deps) (Exporter, error) { return stubExporter{}, nil }

func TestRegisterResolveAndList(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(KindMetadata{Kind: KindMirror, Destructive: true, Factory: stubFactory}); err != nil {
		t.Fatalf("register mirror failed: %v", err)
	}
	if err := Register(KindMetadata{Kind: "PYC", Factory: stubFactory}); err != nil {
		t.Fatalf("register pyc failed: %v", err)
	}

	if _, ok := Resolve(KindCompiledCache); !ok {
		t.Fatalf("expected pyc to resolve")
	}
	if _, ok := Resolve("Mirror"); !ok {
		t.Fatalf("resolve should be case-insensitive")
	}

	list := List()
	if len(list) != 2 {
		t.Fatalf("list length mismatch: %d", len(list))
	}
	if list[0].Kind != KindMirror || list[1].Kind != KindCompiledCache {
		t.Fatalf("unexpected order: %+v", list)
	}
	if keys := Keys(); keys[0] != "mirror" || keys[1] != "pyc" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestRegisterRejectsUnknownAndDuplicates(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if err := Register(KindMetadata{Kind: "bytecode-s3", Factory: stubFactory}); err == nil {
		t.Fatalf("kinds outside the closed set should be rejected")
	}
	if err := Register(KindMetadata{Kind: "", Factory: stubFactory}); err == nil {
		t.Fatalf("empty kind should be rejected")
	}
	if err := Register(KindMetadata{Kind: KindNull}); err == nil {
		t.Fatalf("missing factory should be rejected")
	}
	if err := Register(KindMetadata{Kind: KindNull, Factory: stubFactory}); err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}
	if err := Register(KindMetadata{Kind: KindNull, Factory: stubFactory}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
}

func TestNewUsesFactory(t *testing.T) {
	cleanup := replaceRegistry(t)
	defer cleanup()

	if _, err := New(KindNull, Options{}, Deps{}); err == nil {
		t.Fatalf("unregistered kind should fail")
	}
	MustRegister(KindMetadata{Kind: KindNull, Factory: stubFactory})
	exp, err := New(KindNull, Options{}, Deps{})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := Initialize(context.Background(), exp); err != nil {
		t.Fatalf("initialize on plain exporter should be a no-op: %v", err)
	}
}

func TestParseKind(t *testing.T) {
	testCases := []struct {
		raw       string
		want      Kind
		shouldErr bool
	}{
		{"", KindNull, false},
		{" Mirror ", KindMirror, false},
		{"pyc", KindCompiledCache, false},
		{"save", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseKind(tc.raw)
			if tc.shouldErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("ParseKind(%q) = %q, %v", tc.raw, got, err)
			}
		})
	}
}

func TestTextUnparser(t *testing.T) {
	if text, err := TextUnparser.Unparse("x = 1\n"); err != nil || text != "x = 1\n" {
		t.Fatalf("string tree: %q %v", text, err)
	}
	if text, err := TextUnparser.Unparse([]byte("y = 2\n")); err != nil || text != "y = 2\n" {
		t.Fatalf("byte tree: %q %v", text, err)
	}
	if _, err := TextUnparser.Unparse(42); err == nil {
		t.Fatalf("unsupported tree should fail")
	}
}
