package ustar

import (
	"fmt"
	"io"
	"iter"
)

// Reader drives a forward scan over an archive stream, yielding one
// entry at a time together with a bounded view over its payload.
//
// The reader never seeks. It advances exclusively by sequential reads,
// discarding unread payload and padding itself, so it behaves
// identically whether the source is a file or a decompression pipe.
// If the source happens to be seekable, the yielded views additionally
// support Seek; the scan itself is unaffected.
//
// Only regular files (including legacy NUL-typeflag headers),
// directories, and symbolic links are surfaced. Hard links, devices,
// FIFOs, contiguous files, and unknown typeflags are parsed for
// position bookkeeping and silently skipped.
//
// The scan stops at the first all-zero block. Writers conventionally
// emit two, but nothing after the first is ever read, so a single
// terminator block is sufficient.
//
// A Reader is not safe for concurrent use, and each yielded view must
// be abandoned once Next is called again.
type Reader struct {
	src  io.Reader
	base int64 // offset of the archive origin within src, when seekable
	pos  int64 // bytes consumed from the archive so far
	cur  *EntryView
	err  error // sticky fatal error
	done bool
	blk  block
	skip [blockSize]byte
}

// NewReader returns a Reader scanning src from its current position.
// The reader does not own src; closing it remains the caller's
// responsibility.
func NewReader(src io.Reader) *Reader {
	r := &Reader{src: src}
	if s, ok := src.(io.Seeker); ok {
		if off, err := s.Seek(0, io.SeekCurrent); err == nil {
			r.base = off
		}
	}
	return r
}

// Next returns the next surfaced entry and a view over its payload.
// The caller may read none, some, or all of the view before calling
// Next again; the reader resynchronizes to the following block
// boundary either way. Next returns io.EOF after the terminator block.
// Any format error is fatal: the same error is returned on every
// subsequent call.
func (r *Reader) Next() (Entry, *EntryView, error) {
	if r.err != nil {
		return Entry{}, nil, r.err
	}
	if r.done {
		return Entry{}, nil, io.EOF
	}
	e, v, err := r.scan()
	if err != nil {
		if err == io.EOF {
			r.done = true
		} else {
			r.err = err
		}
		return Entry{}, nil, err
	}
	r.cur = v
	return e, v, nil
}

// Err returns the fatal error that terminated the scan, or nil if the
// scan is still running or ended at the archive terminator.
func (r *Reader) Err() error { return r.err }

// All returns an iterator over the remaining entries. Iteration ends
// at the terminator or on the first format error; consult Err
// afterwards to distinguish the two.
func (r *Reader) All() iter.Seq2[Entry, *EntryView] {
	return func(yield func(Entry, *EntryView) bool) {
		for {
			e, v, err := r.Next()
			if err != nil {
				return
			}
			if !yield(e, v) {
				return
			}
		}
	}
}

func (r *Reader) scan() (Entry, *EntryView, error) {
	if err := r.resync(); err != nil {
		return Entry{}, nil, err
	}
	for {
		hdrPos := r.pos
		if _, err := io.ReadFull(r.src, r.blk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				err = ErrTruncated
			}
			return Entry{}, nil, fmt.Errorf("header at offset %d: %w", hdrPos, err)
		}
		r.pos += blockSize

		if r.blk.isZero() {
			return Entry{}, nil, io.EOF
		}

		e, err := decodeHeader(&r.blk)
		if err != nil {
			return Entry{}, nil, fmt.Errorf("header at offset %d: %w", hdrPos, err)
		}

		switch e.Kind {
		case KindFile, KindDir, KindSymlink:
			return e, NewEntryView(r.src, r.base+r.pos, e.Size), nil
		default:
			// Parsed but not surfaced; traverse payload and padding.
			if err := r.discard(alignBlock(e.Size)); err != nil {
				return Entry{}, nil, err
			}
		}
	}
}

// resync advances the stream to the 512-byte boundary following the
// current entry, accounting for however much of the view the caller
// consumed. It uses sequential reads only.
func (r *Reader) resync() error {
	if r.cur == nil {
		return nil
	}
	v := r.cur
	r.cur = nil
	payloadStart := v.start - r.base
	r.pos = payloadStart + v.consumed()
	return r.discard(payloadStart + alignBlock(v.length) - r.pos)
}

// discard reads and drops n bytes in chunks of up to one block. A
// stream that ends before n bytes arrive is a truncated archive; any
// other read failure propagates as is.
func (r *Reader) discard(n int64) error {
	for n > 0 {
		c := n
		if c > blockSize {
			c = blockSize
		}
		m, err := io.ReadFull(r.src, r.skip[:c])
		r.pos += int64(m)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				err = ErrTruncated
			}
			return fmt.Errorf("resync at offset %d: %w", r.pos, err)
		}
		n -= c
	}
	return nil
}

// alignBlock rounds n up to the next 512-byte boundary.
func alignBlock(n int64) int64 {
	return n + (-n)&(blockSize-1)
}
