package ustar

import (
	"bytes"
	"strconv"
)

// Fixed sizes from the tar wire format.
const (
	blockSize  = 512 // size of each block in a tar stream
	nameSize   = 100 // max length of the name field
	prefixSize = 155 // max length of the ustar prefix field
)

// Maximum values representable by the fixed-width octal fields.
const (
	maxSize12 = 1<<33 - 1 // 12-byte fields: size, mtime (8^11 - 1)
	maxSize8  = 1<<21 - 1 // 8-byte fields: mode, uid, gid, dev (8^7 - 1)
)

const (
	magicUSTAR   = "ustar"
	versionUSTAR = "00"
)

// block is one raw 512-byte unit of tar framing. Field accessors
// return sub-slices per the ustar wire layout; mutating them mutates
// the block.
type block [blockSize]byte

var zeroBlock block

func (b *block) name() []byte     { return b[0:][:nameSize] }
func (b *block) mode() []byte     { return b[100:][:8] }
func (b *block) uid() []byte      { return b[108:][:8] }
func (b *block) gid() []byte      { return b[116:][:8] }
func (b *block) size() []byte     { return b[124:][:12] }
func (b *block) modTime() []byte  { return b[136:][:12] }
func (b *block) chksum() []byte   { return b[148:][:8] }
func (b *block) typeFlag() []byte { return b[156:][:1] }
func (b *block) linkName() []byte { return b[157:][:nameSize] }
func (b *block) magic() []byte    { return b[257:][:6] }
func (b *block) version() []byte  { return b[263:][:2] }
func (b *block) uname() []byte    { return b[265:][:32] }
func (b *block) gname() []byte    { return b[297:][:32] }
func (b *block) devMajor() []byte { return b[329:][:8] }
func (b *block) devMinor() []byte { return b[337:][:8] }
func (b *block) prefix() []byte   { return b[345:][:prefixSize] }

func (b *block) isZero() bool {
	return *b == zeroBlock
}

// computeChecksum sums the block as unsigned bytes with the eight
// checksum-field bytes counted as ASCII space (0x20).
func (b *block) computeChecksum() int64 {
	var sum int64
	for i, c := range b {
		if 148 <= i && i < 156 {
			c = ' '
		}
		sum += int64(c)
	}
	return sum
}

// setChecksum stores sum in the conventional layout: six octal digits,
// a NUL, and a space.
func (b *block) setChecksum(sum int64) {
	f := b.chksum()
	s := strconv.FormatInt(sum, 8)
	for i := range 6 {
		f[i] = '0'
	}
	copy(f[6-len(s):6], s)
	f[6] = 0
	f[7] = ' '
}

// parseOctal decodes a right-justified octal field. Leading and
// trailing spaces and NULs are accepted; an empty field decodes to
// zero. Any other non-digit byte fails with ErrInvalidOctal.
func parseOctal(field []byte) (int64, error) {
	field = bytes.Trim(field, " \x00")
	var v int64
	for _, c := range field {
		if c < '0' || c > '7' {
			return 0, ErrInvalidOctal
		}
		v = v<<3 | int64(c-'0')
	}
	return v, nil
}

// formatOctal writes v right-justified with leading zeros and a
// trailing NUL. Values that do not fit fail with ErrFieldTooLong.
func formatOctal(field []byte, v int64) error {
	if v < 0 {
		return ErrFieldTooLong
	}
	s := strconv.FormatInt(v, 8)
	if len(s) > len(field)-1 {
		return ErrFieldTooLong
	}
	pad := len(field) - 1 - len(s)
	for i := range pad {
		field[i] = '0'
	}
	copy(field[pad:], s)
	field[len(field)-1] = 0
	return nil
}

// parseString decodes a NUL-padded text field.
func parseString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// formatString writes s into a text field, silently clipping it to the
// field width. NUL padding comes from the zeroed block.
func formatString(field []byte, s string) {
	copy(field, s)
}
