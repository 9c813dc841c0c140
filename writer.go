package ustar

import (
	"errors"
	"fmt"
	"io"
)

// Writer emits an archive to an underlying stream, one entry at a
// time, in the order given. It buffers nothing beyond the current
// header block; payload bytes stream straight through.
//
// The writer does not own the underlying stream: Close writes the
// archive terminator but leaves the stream open.
type Writer struct {
	w      io.Writer
	closed bool
	blk    block
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEntry encodes e's header, copies e.Size payload bytes from src,
// and zero-pads the payload to the next block boundary.
//
// src may be nil for entries without payload; kinds that cannot carry
// payload (directories, links, devices, FIFOs) always encode with a
// zero size field and consume nothing from src. If src is seekable it
// is rewound to its start first, so the same source can be written
// more than once.
//
// Invalid input is rejected before any bytes reach the stream.
func (w *Writer) WriteEntry(e Entry, src io.Reader) error {
	if w.closed {
		return ErrWriterClosed
	}
	size := e.Size
	if !e.Kind.hasPayload() || size < 0 {
		size = 0
	}
	if size > 0 && src == nil {
		return fmt.Errorf("ustar: entry %q declares %d payload bytes but has no source", e.Name, size)
	}
	if err := encodeHeader(&e, &w.blk); err != nil {
		return fmt.Errorf("encode %q: %w", e.Name, err)
	}
	if _, err := w.w.Write(w.blk[:]); err != nil {
		return err
	}
	if size == 0 {
		return nil
	}

	if s, ok := src.(io.Seeker); ok {
		if _, err := s.Seek(0, io.SeekStart); err != nil && !errors.Is(err, ErrNotSeekable) {
			return fmt.Errorf("rewind payload for %q: %w", e.Name, err)
		}
	}
	n, err := io.CopyN(w.w, src, size)
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("payload for %q: got %d of %d bytes: %w", e.Name, n, size, io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("payload for %q: %w", e.Name, err)
	}
	if pad := alignBlock(size) - size; pad > 0 {
		if _, err := w.w.Write(zeroBlock[:pad]); err != nil {
			return err
		}
	}
	return nil
}

// Close writes the archive terminator: two consecutive all-zero
// blocks, per POSIX, even though this package's own reader stops at
// the first. Close does not close the underlying stream. Closing an
// already-closed Writer is a no-op.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	for range 2 {
		if _, err := w.w.Write(zeroBlock[:]); err != nil {
			return err
		}
	}
	return nil
}
