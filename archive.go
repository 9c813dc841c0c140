package ustar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/meigma/ustar/internal/ioutil"
)

// DefaultMaxFiles is the default limit used when no ArchiveWithMaxFiles
// option is set.
const DefaultMaxFiles = 200_000

// errSymlink marks a path that turned out to be a symbolic link when
// opened; such entries are skipped rather than archived.
var errSymlink = errors.New("ustar: symbolic link")

type archiveConfig struct {
	compression Compression
	logger      *slog.Logger
	maxFiles    int
}

func (c *archiveConfig) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

// ArchiveOption configures Archive.
type ArchiveOption func(*archiveConfig)

// ArchiveWithCompression compresses the output stream with the given
// algorithm. The default is an uncompressed archive.
func ArchiveWithCompression(c Compression) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.compression = c
	}
}

// ArchiveWithLogger sets the logger for progress reporting. The
// default discards all output.
func ArchiveWithLogger(l *slog.Logger) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.logger = l
	}
}

// ArchiveWithMaxFiles limits the number of files included in the
// archive. Zero uses DefaultMaxFiles. Negative means no limit.
func ArchiveWithMaxFiles(n int) ArchiveOption {
	return func(cfg *archiveConfig) {
		cfg.maxFiles = n
	}
}

// Archive walks dir and writes its directories and regular files to
// out as an archive, terminator included. Directories are emitted
// before their contents (lexical walk order) with a trailing slash and
// a zero size. Symbolic links and special files are not archived.
//
// The walk is confined to dir via os.Root; files that are symlinks by
// the time they are opened are skipped rather than followed.
//
// The context cancels a long-running walk between entries and during
// payload copies.
func Archive(ctx context.Context, dir string, out io.Writer, opts ...ArchiveOption) error {
	cfg := archiveConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	maxFiles := cfg.maxFiles
	if maxFiles == 0 {
		maxFiles = DefaultMaxFiles
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return err
	}
	defer root.Close()

	log := cfg.log()
	log.Info("creating archive", "dir", dir, "compression", cfg.compression.String())

	cw := &ioutil.CountingWriter{W: out}
	zw, err := WrapWriter(cw, cfg.compression)
	if err != nil {
		return err
	}
	tw := NewWriter(zw)

	files := 0
	err = fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == "." {
			return nil
		}

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			uid, gid := fileOwner(info)
			return tw.WriteEntry(Entry{
				Name:    path + "/",
				Kind:    KindDir,
				Mode:    int64(info.Mode().Perm()),
				UID:     int64(uid),
				GID:     int64(gid),
				ModTime: info.ModTime(),
			}, nil)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if maxFiles > 0 && files >= maxFiles {
			return ErrTooManyFiles
		}
		if err := archiveFile(tw, root, path); err != nil {
			if errors.Is(err, errSymlink) {
				return nil
			}
			return err
		}
		files++
		return nil
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush compressed output: %w", err)
	}

	log.Info("archive complete", "files", files, "bytes", cw.N)
	return nil
}

func archiveFile(tw *Writer, root *os.Root, path string) error {
	f, err := openFileNoFollow(root, path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", path)
	}

	uid, gid := fileOwner(info)
	return tw.WriteEntry(Entry{
		Name:    path,
		Kind:    KindFile,
		Mode:    int64(info.Mode().Perm()),
		UID:     int64(uid),
		GID:     int64(gid),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, f)
}
