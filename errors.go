package ustar

import "errors"

// Sentinel errors for archive operations. Format errors are fatal:
// once the reader returns one, the archive is malformed from that
// point forward and iteration cannot continue.
var (
	// ErrTruncated is returned when the stream ends where a full
	// 512-byte block was expected, mid-header or mid-padding.
	ErrTruncated = errors.New("ustar: truncated archive")

	// ErrInvalidOctal is returned when a numeric header field contains
	// a byte that is not an octal digit, space, or NUL.
	ErrInvalidOctal = errors.New("ustar: invalid octal field")

	// ErrChecksum is returned when the recomputed header checksum
	// disagrees with the stored value.
	ErrChecksum = errors.New("ustar: header checksum mismatch")

	// ErrFieldTooLong is returned when a value does not fit its
	// fixed-width header field. It is reported before any bytes are
	// written.
	ErrFieldTooLong = errors.New("ustar: value too large for header field")

	// ErrOutOfRange is returned by EntryView.Seek for offsets outside
	// the view's payload range.
	ErrOutOfRange = errors.New("ustar: seek out of range")

	// ErrNotSeekable is returned by EntryView.Seek when the underlying
	// source only supports forward reads.
	ErrNotSeekable = errors.New("ustar: source is not seekable")

	// ErrWriterClosed is returned when writing after Close.
	ErrWriterClosed = errors.New("ustar: writer is closed")

	// ErrTooManyFiles is returned by Archive when the file count
	// exceeds the configured limit.
	ErrTooManyFiles = errors.New("ustar: too many files")
)
