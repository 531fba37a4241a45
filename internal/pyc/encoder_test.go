package pyc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/require"
)

func testRuntime(t *testing.T) Runtime {
	t.Helper()
	rt, ok := ResolveRuntime("cpython-310")
	require.True(t, ok)
	return rt
}

func TestEncoderTimestampUsesSourceStat(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "mod.py")
	require.NoError(t, os.WriteFile(source, []byte("x = 1\n"), 0o644))
	mtime := time.Unix(1700000000, 500)
	require.NoError(t, os.Chtimes(source, mtime, mtime))

	enc := NewEncoder(osfs.New("/"), testRuntime(t), PathOptions{})
	data, err := enc.Encode([]byte("payload"), source, ModeTimestamp)
	require.NoError(t, err)

	header, payload, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, Timestamp{SourceMtime: 1700000000, SourceSize: 6}, header.Descriptor)
	require.Equal(t, []byte("payload"), payload)
}

func TestEncoderHashUsesSourceText(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/proj/mod.py", []byte("x = 1\n"), 0o644))
	rt := testRuntime(t)

	enc := NewEncoder(fs, rt, PathOptions{})
	data, err := enc.Encode([]byte("payload"), "/proj/mod.py", ModeCheckedHash)
	require.NoError(t, err)

	header, _, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, Hash{Digest: 0xbfbe8c8ce2ad4ad9, Checked: true}, header.Descriptor)
	require.Equal(t, []byte{0xd9, 0x4a, 0xad, 0xe2, 0x8c, 0x8c, 0xbe, 0xbf}, data[8:16])

	again, err := enc.Encode([]byte("payload"), "/proj/mod.py", ModeCheckedHash)
	require.NoError(t, err)
	require.Equal(t, data, again)
}

func TestEncoderMissingSource(t *testing.T) {
	enc := NewEncoder(memfs.New(), testRuntime(t), PathOptions{})

	for _, mode := range []Mode{ModeTimestamp, ModeCheckedHash, ModeUncheckedHash} {
		t.Run(string(mode), func(t *testing.T) {
			_, err := enc.Encode([]byte("payload"), "/missing.py", mode)
			require.Error(t, err)
			require.Equal(t, CodeSourceUnavailable, errors.GetCode(err))
		})
	}
}

func TestEncoderUnknownMode(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/mod.py", []byte("x"), 0o644))
	enc := NewEncoder(fs, testRuntime(t), PathOptions{})

	_, err := enc.Encode(nil, "/mod.py", Mode("sha1"))
	require.Error(t, err)
	require.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestEncoderCachePathFor(t *testing.T) {
	enc := NewEncoder(memfs.New(), testRuntime(t), PathOptions{Optimization: "1"})
	got, err := enc.CachePathFor("/proj/a/b.py")
	require.NoError(t, err)
	require.Equal(t, filepath.FromSlash("/proj/a/__pycache__/b.cpython-310.opt-1.pyc"), got)
}
