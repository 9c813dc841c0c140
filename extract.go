package ustar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/ustar/internal/ioutil"
)

// maxWorkerPayload bounds how much of one entry the worker path will
// buffer in memory. Larger payloads stream serially instead, so a
// forged size field cannot drive allocation.
const maxWorkerPayload = 4 << 20

type extractConfig struct {
	overwrite     bool
	preserveMode  bool
	preserveTimes bool
	workers       int
	logger        *slog.Logger
}

func (c *extractConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

// ExtractOption configures Extract.
type ExtractOption func(*extractConfig)

// ExtractWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func ExtractWithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// ExtractWithPreserveMode controls whether permission bits recorded in
// the archive are applied. Enabled by default; when disabled, files
// use umask defaults.
func ExtractWithPreserveMode(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveMode = preserve
	}
}

// ExtractWithPreserveTimes controls whether recorded modification
// times are applied. Enabled by default.
func ExtractWithPreserveTimes(preserve bool) ExtractOption {
	return func(c *extractConfig) {
		c.preserveTimes = preserve
	}
}

// ExtractWithWorkers enables a pool of n workers for writing files.
// Payloads up to maxWorkerPayload are buffered in memory and handed
// off so the archive scan itself stays strictly sequential; larger
// payloads stream serially. Values <= 0 keep extraction serial and
// streaming throughout.
func ExtractWithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// ExtractWithLogger sets the logger for progress reporting. The
// default discards all output.
func ExtractWithLogger(l *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = l
	}
}

type dirTime struct {
	path  string
	mtime time.Time
}

// Extract reads an archive from src, transparently decompressing gzip
// and zstd streams, and materializes its entries under destDir:
// directories are created, files written, symlinks recreated, and
// recorded modification times applied per the options.
//
// All filesystem operations go through an os.Root opened on destDir,
// so no entry can write outside it: names with traversal elements are
// skipped up front, and writing through a symlink that points outside
// the destination fails rather than following it.
func Extract(ctx context.Context, src io.Reader, destDir string, opts ...ExtractOption) error {
	cfg := extractConfig{preserveMode: true, preserveTimes: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.log()

	r, err := OpenReader(src)
	if err != nil {
		return err
	}

	root, err := os.OpenRoot(destDir)
	if err != nil {
		return err
	}
	defer root.Close()

	var eg *errgroup.Group
	egCtx := ctx
	if cfg.workers > 0 {
		eg, egCtx = errgroup.WithContext(ctx)
		eg.SetLimit(cfg.workers)
	}
	wait := func() error {
		if eg == nil {
			return nil
		}
		return eg.Wait()
	}

	var dirTimes []dirTime
	buf := make([]byte, 32*1024)
	files := 0

	for {
		if err := egCtx.Err(); err != nil {
			wait() //nolint:errcheck // context error takes precedence
			return err
		}
		e, view, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			wait() //nolint:errcheck // scan error takes precedence
			return err
		}

		target, ok := safePath(e.Name)
		if !ok {
			log.Warn("skipping entry with unsafe path", "name", e.Name)
			continue
		}

		switch e.Kind {
		case KindDir:
			if err := root.MkdirAll(target, extractMode(&cfg, &e, 0o755)); err != nil {
				wait() //nolint:errcheck
				return err
			}
			if cfg.preserveTimes {
				dirTimes = append(dirTimes, dirTime{path: target, mtime: e.ModTime})
			}

		case KindSymlink:
			if err := extractSymlink(&cfg, root, target, e.LinkName); err != nil {
				wait() //nolint:errcheck
				return err
			}

		case KindFile:
			if !cfg.overwrite {
				if _, err := root.Lstat(target); err == nil {
					continue // payload discarded by resync
				}
			}
			mode := extractMode(&cfg, &e, 0o644)
			if eg != nil && e.Size <= maxWorkerPayload {
				data := make([]byte, e.Size)
				if _, err := io.ReadFull(view, data); err != nil {
					wait() //nolint:errcheck
					return fmt.Errorf("read payload for %q: %w", e.Name, err)
				}
				mtime := e.ModTime
				eg.Go(func() error {
					return writeFile(egCtx, &cfg, root, target, bytes.NewReader(data), mode, mtime, nil)
				})
			} else {
				if err := writeFile(egCtx, &cfg, root, target, view, mode, e.ModTime, buf); err != nil {
					wait() //nolint:errcheck
					return err
				}
			}
			files++
		}
	}

	if err := wait(); err != nil {
		return err
	}

	// Directory times go last, deepest first, so file and subdirectory
	// writes do not clobber them.
	for i := len(dirTimes) - 1; i >= 0; i-- {
		d := dirTimes[i]
		if err := root.Chtimes(d.path, d.mtime, d.mtime); err != nil {
			return err
		}
	}

	log.Info("extraction complete", "files", files)
	return nil
}

// safePath validates an archive member name and converts it to a path
// relative to the extraction root, rejecting names that are absolute,
// empty, or contain traversal elements.
func safePath(name string) (string, bool) {
	name = strings.TrimSuffix(name, "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}
	return filepath.FromSlash(name), true
}

func extractMode(cfg *extractConfig, e *Entry, fallback fs.FileMode) fs.FileMode {
	if !cfg.preserveMode {
		return fallback
	}
	mode := fs.FileMode(e.Mode).Perm()
	if mode == 0 {
		return fallback
	}
	return mode
}

func extractSymlink(cfg *extractConfig, root *os.Root, target, linkName string) error {
	if linkName == "" {
		return nil
	}
	if err := root.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if _, err := root.Lstat(target); err == nil {
		if !cfg.overwrite {
			return nil
		}
		if err := root.Remove(target); err != nil {
			return err
		}
	}
	return root.Symlink(linkName, target)
}

// writeFile writes payload atomically: into a temp file alongside the
// target, renamed into place once complete. All operations stay inside
// root. A nil buf allocates one.
func writeFile(ctx context.Context, cfg *extractConfig, root *os.Root, target string, src io.Reader, mode fs.FileMode, mtime time.Time, buf []byte) error {
	if err := root.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	tmp := target + ".ustar-tmp"
	f, err := root.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer root.Remove(tmp) //nolint:errcheck // no-op after successful rename

	if buf == nil {
		buf = make([]byte, 32*1024)
	}
	if _, err := ioutil.CopyWithContext(ctx, f, src, buf); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := root.Rename(tmp, target); err != nil {
		return err
	}
	if cfg.preserveTimes {
		return root.Chtimes(target, mtime, mtime)
	}
	return nil
}
