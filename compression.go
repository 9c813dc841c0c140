package ustar

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies the stream compression wrapped around an
// archive. It concerns the outer byte stream only; the tar format
// itself is never compressed member-by-member.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionZstd
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectCompression sniffs a stream prefix for a known compression
// magic number. Up to four bytes are examined.
func DetectCompression(prefix []byte) Compression {
	switch {
	case bytes.HasPrefix(prefix, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(prefix, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// OpenReader returns a Reader over src, transparently decompressing
// gzip and zstd streams detected by their magic numbers.
//
// The decompressed stream is strictly forward-only, which the Reader
// handles without seeking; views yielded from a compressed archive do
// not support Seek.
func OpenReader(src io.Reader) (*Reader, error) {
	br := bufio.NewReader(src)
	prefix, err := br.Peek(4)
	if err != nil && len(prefix) == 0 {
		// Defer the error to the first header read, which reports it
		// as a truncated archive with position context.
		return NewReader(br), nil
	}
	switch DetectCompression(prefix) {
	case CompressionGzip:
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		return NewReader(zr), nil
	case CompressionZstd:
		zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("open zstd stream: %w", err)
		}
		return NewReader(zr.IOReadCloser()), nil
	default:
		return NewReader(br), nil
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// WrapWriter wraps w with the given compressor. The returned closer
// must be closed after the archive Writer to flush compressed output;
// it does not close w itself. CompressionNone returns a pass-through.
func WrapWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1), zstd.WithLowerEncoderMem(true))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("ustar: unknown compression %d", c)
	}
}
