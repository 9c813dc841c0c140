package ustar

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildArchive assembles archive bytes from the given entries.
func buildArchive(t *testing.T, write func(w *Writer)) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	write(w)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractBasic(t *testing.T) {
	t.Parallel()

	mtime := time.Unix(1600000000, 0)
	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "d/", Kind: KindDir, Mode: 0o755, ModTime: mtime}, nil))
		require.NoError(t, w.WriteEntry(Entry{Name: "d/f.txt", Kind: KindFile, Mode: 0o640, Size: 5, ModTime: mtime}, strings.NewReader("hello")))
		require.NoError(t, w.WriteEntry(Entry{Name: "d/link", Kind: KindSymlink, LinkName: "f.txt", ModTime: mtime}, nil))
	})

	dest := t.TempDir()
	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest))

	got, err := os.ReadFile(filepath.Join(dest, "d", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	info, err := os.Stat(filepath.Join(dest, "d", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
	assert.True(t, mtime.Equal(info.ModTime()))

	target, err := os.Readlink(filepath.Join(dest, "d", "link"))
	require.NoError(t, err)
	assert.Equal(t, "f.txt", target)

	dirInfo, err := os.Stat(filepath.Join(dest, "d"))
	require.NoError(t, err)
	assert.True(t, mtime.Equal(dirInfo.ModTime()), "directory times applied after contents")
}

func TestExtractSkipsExistingByDefault(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "f.txt", Kind: KindFile, Mode: 0o644, Size: 3}, strings.NewReader("new")))
	})

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "f.txt"), []byte("old"), 0o644))

	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest))
	got, err := os.ReadFile(filepath.Join(dest, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestExtractOverwrite(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "f.txt", Kind: KindFile, Mode: 0o644, Size: 3}, strings.NewReader("new")))
	})

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "f.txt"), []byte("old"), 0o644))

	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest, ExtractWithOverwrite(true)))
	got, err := os.ReadFile(filepath.Join(dest, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestExtractSkipAdvancesPastPayload(t *testing.T) {
	t.Parallel()

	// The skipped entry's payload must be discarded so the entry after
	// it still extracts.
	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "exists.txt", Kind: KindFile, Mode: 0o644, Size: 9}, strings.NewReader("discarded")))
		require.NoError(t, w.WriteEntry(Entry{Name: "fresh.txt", Kind: KindFile, Mode: 0o644, Size: 4}, strings.NewReader("kept")))
	})

	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "exists.txt"), []byte("old"), 0o644))

	require.NoError(t, Extract(context.Background(), &forwardOnly{r: bytes.NewReader(raw)}, dest))

	got, err := os.ReadFile(filepath.Join(dest, "fresh.txt"))
	require.NoError(t, err)
	assert.Equal(t, "kept", string(got))
}

func TestExtractRejectsUnsafePaths(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "../evil.txt", Kind: KindFile, Mode: 0o644, Size: 4}, strings.NewReader("pwnd")))
		require.NoError(t, w.WriteEntry(Entry{Name: "ok.txt", Kind: KindFile, Mode: 0o644, Size: 2}, strings.NewReader("ok")))
	})

	parent := t.TempDir()
	dest := filepath.Join(parent, "dest")
	require.NoError(t, os.Mkdir(dest, 0o755))

	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest))

	_, err := os.Stat(filepath.Join(parent, "evil.txt"))
	assert.True(t, os.IsNotExist(err), "traversal entry must not escape the destination")

	got, err := os.ReadFile(filepath.Join(dest, "ok.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestExtractWithoutPreserve(t *testing.T) {
	t.Parallel()

	old := time.Unix(1500000000, 0)
	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "f.txt", Kind: KindFile, Mode: 0o400, Size: 1, ModTime: old}, strings.NewReader("x")))
	})

	dest := t.TempDir()
	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest,
		ExtractWithPreserveMode(false),
		ExtractWithPreserveTimes(false),
	))

	info, err := os.Stat(filepath.Join(dest, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	assert.False(t, old.Equal(info.ModTime()))
}

func TestExtractRefusesWriteThroughSymlink(t *testing.T) {
	t.Parallel()

	// A symlink pointing above the destination followed by a file
	// routed through it. The file write must fail inside the root
	// rather than land in the destination's parent.
	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "sub", Kind: KindSymlink, LinkName: ".."}, nil))
		require.NoError(t, w.WriteEntry(Entry{Name: "sub/evil.txt", Kind: KindFile, Mode: 0o644, Size: 4}, strings.NewReader("pwnd")))
	})

	parent := t.TempDir()
	dest := filepath.Join(parent, "dest")
	require.NoError(t, os.Mkdir(dest, 0o755))

	err := Extract(context.Background(), bytes.NewReader(raw), dest)
	assert.Error(t, err)

	_, statErr := os.Lstat(filepath.Join(parent, "evil.txt"))
	assert.True(t, os.IsNotExist(statErr), "file must not escape the destination")
}

func TestExtractSymlinkWithinDest(t *testing.T) {
	t.Parallel()

	// Symlinks between members of the destination still work; writes
	// routed through them stay inside the root.
	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "real/", Kind: KindDir, Mode: 0o755}, nil))
		require.NoError(t, w.WriteEntry(Entry{Name: "alias", Kind: KindSymlink, LinkName: "real"}, nil))
		require.NoError(t, w.WriteEntry(Entry{Name: "alias/f.txt", Kind: KindFile, Mode: 0o644, Size: 2}, strings.NewReader("ok")))
	})

	dest := t.TempDir()
	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest))

	got, err := os.ReadFile(filepath.Join(dest, "real", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok", string(got))
}

func TestExtractWithWorkers(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, func(w *Writer) {
		for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
			require.NoError(t, w.WriteEntry(Entry{Name: name, Kind: KindFile, Mode: 0o644, Size: int64(len(name))}, strings.NewReader(name)))
		}
	})

	dest := t.TempDir()
	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest, ExtractWithWorkers(3)))

	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		got, err := os.ReadFile(filepath.Join(dest, name))
		require.NoError(t, err)
		assert.Equal(t, name, string(got))
	}
}

func TestExtractWorkersLargePayloadStreams(t *testing.T) {
	t.Parallel()

	// Payloads beyond the buffering cap take the serial streaming path
	// even with workers enabled; the result must be byte-identical.
	big := bytes.Repeat([]byte("01234567"), (maxWorkerPayload/8)+1)
	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "big.bin", Kind: KindFile, Mode: 0o644, Size: int64(len(big))}, bytes.NewReader(big)))
		require.NoError(t, w.WriteEntry(Entry{Name: "small.txt", Kind: KindFile, Mode: 0o644, Size: 5}, strings.NewReader("small")))
	})

	dest := t.TempDir()
	require.NoError(t, Extract(context.Background(), bytes.NewReader(raw), dest, ExtractWithWorkers(2)))

	got, err := os.ReadFile(filepath.Join(dest, "big.bin"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(big, got), "large payload round-trips intact")

	small, err := os.ReadFile(filepath.Join(dest, "small.txt"))
	require.NoError(t, err)
	assert.Equal(t, "small", string(small))
}

func TestExtractCanceledContext(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "f.txt", Kind: KindFile, Mode: 0o644, Size: 1}, strings.NewReader("x")))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Extract(ctx, bytes.NewReader(raw), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractTruncatedArchive(t *testing.T) {
	t.Parallel()

	raw := buildArchive(t, func(w *Writer) {
		require.NoError(t, w.WriteEntry(Entry{Name: "f.txt", Kind: KindFile, Mode: 0o644, Size: 5}, strings.NewReader("hello")))
	})

	err := Extract(context.Background(), bytes.NewReader(raw[:700]), t.TempDir())
	assert.ErrorIs(t, err, ErrTruncated)
}
