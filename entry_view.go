package ustar

import "io"

// EntryView is a bounded, read-only view over one entry's payload in
// the underlying stream. It owns no data: reads are clipped to the
// range [start, start+length) and the region is never copied.
//
// The view keeps its own cursor, clamped to [0, length]. When the
// underlying source is seekable, the view repositions it before every
// read, so the source may be shared and moved between reads. Over a
// forward-only source the view simply consumes bytes in order and Seek
// is unavailable.
//
// A view produced by a [Reader] is valid only until the next call to
// Next: the reader resynchronizes the stream past whatever the view
// did not consume.
type EntryView struct {
	src    io.Reader
	seeker io.Seeker // non-nil when src supports repositioning
	start  int64     // absolute payload offset in src
	length int64
	pos    int64 // view cursor, relative to start

	// advanced tracks how far past start the underlying stream has
	// actually moved. For forward-only sources it grows with reads;
	// for seekable sources it follows the cursor, since every read
	// repositions the source first.
	advanced int64
}

// NewEntryView returns a view over length bytes of src beginning at
// absolute offset start. If src implements io.Seeker the view is
// seekable; a view over an in-memory bytes.Reader is therefore always
// seekable. For forward-only sources, src must already be positioned
// at start.
func NewEntryView(src io.Reader, start, length int64) *EntryView {
	v := &EntryView{src: src, start: start, length: length}
	if s, ok := src.(io.Seeker); ok {
		v.seeker = s
	}
	return v
}

// Size returns the total payload length of the view.
func (v *EntryView) Size() int64 { return v.length }

// Read reads from the view at its cursor, clipping the request to the
// remaining bytes in range. It returns io.EOF at end of range and
// never reads the underlying stream past start+length. A source that
// runs dry before the range ends yields io.ErrUnexpectedEOF.
func (v *EntryView) Read(p []byte) (int, error) {
	if v.pos >= v.length {
		return 0, io.EOF
	}
	if rem := v.length - v.pos; int64(len(p)) > rem {
		p = p[:rem]
	}
	if v.seeker != nil {
		if _, err := v.seeker.Seek(v.start+v.pos, io.SeekStart); err != nil {
			return 0, err
		}
		v.advanced = v.pos
	}
	n, err := v.src.Read(p)
	v.pos += int64(n)
	v.advanced += int64(n)
	if err == io.EOF && v.pos < v.length {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}

// Seek repositions the view cursor. It is permitted only when the
// underlying source is seekable and fails with ErrOutOfRange when the
// target falls outside [0, length]. The underlying stream itself does
// not move until the next Read.
func (v *EntryView) Seek(offset int64, whence int) (int64, error) {
	if v.seeker == nil {
		return 0, ErrNotSeekable
	}
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = v.pos + offset
	case io.SeekEnd:
		abs = v.length + offset
	default:
		return 0, ErrOutOfRange
	}
	if abs < 0 || abs > v.length {
		return 0, ErrOutOfRange
	}
	v.pos = abs
	return abs, nil
}

// consumed reports how many bytes of the underlying stream, relative
// to start, have been read through this view. The reader uses it to
// compute how much of the entry remains to discard during resync.
func (v *EntryView) consumed() int64 { return v.advanced }
