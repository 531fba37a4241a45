package cache

import (
	"context"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func TestSourceMode(t *testing.T) {
	fs := memfs.New()
	testCases := []struct {
		name string
		perm os.FileMode
		want os.FileMode
	}{
		{"read only", 0o444, 0o644},
		{"executable", 0o755, 0o644},
		{"group write", 0o664, 0o664},
		{"private", 0o400, 0o600},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := "/src/" + tc.name + ".py"
			if err := util.WriteFile(fs, path, []byte("x"), tc.perm); err != nil {
				t.Fatalf("write error: %v", err)
			}
			if got := SourceMode(fs, path); got != tc.want {
				t.Fatalf("expected %o, got %o", tc.want, got)
			}
		})
	}

	if got := SourceMode(fs, "/src/missing.py"); got != 0o666 {
		t.Fatalf("missing source should default to 0666, got %o", got)
	}
}

func TestModeWriterInheritsSourceMode(t *testing.T) {
	store, fs := newTestStore(t)
	if err := util.WriteFile(fs, "/proj/mod.py", []byte("x = 1\n"), 0o444); err != nil {
		t.Fatalf("write error: %v", err)
	}

	writer := NewModeWriter(store, fs)
	if !writer.Enabled() {
		t.Fatalf("writer with store should be enabled")
	}
	entry, err := writer.Put(context.Background(), "/proj/__pycache__/mod.cpython-310.pyc", "/proj/mod.py", []byte("data"))
	if err != nil {
		t.Fatalf("put error: %v", err)
	}
	if entry.Mode != 0o644 {
		t.Fatalf("expected 0644, got %o", entry.Mode)
	}
}

func TestModeWriterWithoutStore(t *testing.T) {
	writer := NewModeWriter(nil, memfs.New())
	if writer.Enabled() {
		t.Fatalf("writer without store should be disabled")
	}
	if _, err := writer.Put(context.Background(), "/a.pyc", "/a.py", nil); err != ErrStoreUnavailable {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
