package ustar

import (
	"bytes"
	"fmt"
	"time"
)

// Typeflag byte codes per the wire format. A NUL typeflag is a legacy
// spelling of a regular file.
const (
	typeFile       = '0'
	typeHardLink   = '1'
	typeSymlink    = '2'
	typeCharDevice = '3'
	typeBlockDev   = '4'
	typeDir        = '5'
	typeFIFO       = '6'
	typeContiguous = '7'
)

func kindFromTypeFlag(c byte) Kind {
	switch c {
	case typeFile, 0:
		return KindFile
	case typeHardLink:
		return KindHardLink
	case typeSymlink:
		return KindSymlink
	case typeCharDevice:
		return KindCharDevice
	case typeBlockDev:
		return KindBlockDevice
	case typeDir:
		return KindDir
	case typeFIFO:
		return KindFIFO
	case typeContiguous:
		return KindContiguous
	default:
		return KindUnknown
	}
}

func typeFlagFromKind(k Kind) (byte, bool) {
	switch k {
	case KindFile:
		return typeFile, true
	case KindHardLink:
		return typeHardLink, true
	case KindSymlink:
		return typeSymlink, true
	case KindCharDevice:
		return typeCharDevice, true
	case KindBlockDevice:
		return typeBlockDev, true
	case KindDir:
		return typeDir, true
	case KindFIFO:
		return typeFIFO, true
	case KindContiguous:
		return typeContiguous, true
	default:
		return 0, false
	}
}

// decodeHeader parses a raw header block into an Entry.
//
// Numeric fields are parsed first, then the checksum is recomputed
// with the checksum field space-filled and compared against the stored
// value. If the magic field trims to exactly "ustar", the ustar
// extension fields are decoded and the logical path is the
// concatenation prefix + name. No separator is inserted between the
// two halves; see splitName for the matching encode-side behavior.
func decodeHeader(b *block) (Entry, error) {
	var e Entry
	var err error
	if e.Mode, err = parseOctal(b.mode()); err != nil {
		return Entry{}, fmt.Errorf("mode: %w", err)
	}
	if e.UID, err = parseOctal(b.uid()); err != nil {
		return Entry{}, fmt.Errorf("uid: %w", err)
	}
	if e.GID, err = parseOctal(b.gid()); err != nil {
		return Entry{}, fmt.Errorf("gid: %w", err)
	}
	if e.Size, err = parseOctal(b.size()); err != nil {
		return Entry{}, fmt.Errorf("size: %w", err)
	}
	mtime, err := parseOctal(b.modTime())
	if err != nil {
		return Entry{}, fmt.Errorf("mtime: %w", err)
	}
	e.ModTime = time.Unix(mtime, 0)

	stored, err := parseOctal(b.chksum())
	if err != nil {
		return Entry{}, fmt.Errorf("checksum: %w", err)
	}
	if stored != b.computeChecksum() {
		return Entry{}, ErrChecksum
	}

	e.Kind = kindFromTypeFlag(b.typeFlag()[0])
	e.Name = parseString(b.name())
	e.LinkName = parseString(b.linkName())

	if string(bytes.Trim(b.magic(), " \x00")) == magicUSTAR {
		e.Magic = magicUSTAR
		e.Version = parseString(b.version())
		e.UserName = parseString(b.uname())
		e.GroupName = parseString(b.gname())
		if e.DevMajor, err = parseOctal(b.devMajor()); err != nil {
			return Entry{}, fmt.Errorf("devmajor: %w", err)
		}
		if e.DevMinor, err = parseOctal(b.devMinor()); err != nil {
			return Entry{}, fmt.Errorf("devminor: %w", err)
		}
		if p := parseString(b.prefix()); p != "" {
			e.Name = p + e.Name
		}
	}

	// Payloadless kinds never contribute payload blocks, whatever the
	// size field claims.
	if !e.Kind.hasPayload() {
		e.Size = 0
	}
	return e, nil
}

// encodeHeader packs e into a ustar header block. Numeric values that
// exceed their field capacity fail with ErrFieldTooLong before any
// output is produced; kinds outside the closed set cannot be encoded.
func encodeHeader(e *Entry, b *block) error {
	tf, ok := typeFlagFromKind(e.Kind)
	if !ok {
		return fmt.Errorf("ustar: cannot encode entry kind %s", e.Kind)
	}

	*b = block{}

	name := e.Name
	if len(name) > nameSize {
		if prefix, rest, ok := splitName(name); ok {
			formatString(b.prefix(), prefix)
			name = rest
		} else {
			// No valid split point: store the first 100 bytes. This is
			// lossy and documented, not an error.
			name = name[:nameSize]
		}
	}
	formatString(b.name(), name)

	if err := formatOctal(b.mode(), e.Mode); err != nil {
		return fmt.Errorf("mode: %w", err)
	}
	if err := formatOctal(b.uid(), e.UID); err != nil {
		return fmt.Errorf("uid: %w", err)
	}
	if err := formatOctal(b.gid(), e.GID); err != nil {
		return fmt.Errorf("gid: %w", err)
	}
	size := e.Size
	if !e.Kind.hasPayload() {
		size = 0
	}
	if err := formatOctal(b.size(), size); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	mtime := e.ModTime.Unix()
	if e.ModTime.IsZero() {
		mtime = 0
	}
	if err := formatOctal(b.modTime(), mtime); err != nil {
		return fmt.Errorf("mtime: %w", err)
	}

	b.typeFlag()[0] = tf
	formatString(b.linkName(), e.LinkName)
	copy(b.magic(), magicUSTAR+"\x00")
	copy(b.version(), versionUSTAR)
	formatString(b.uname(), e.UserName)
	formatString(b.gname(), e.GroupName)
	if err := formatOctal(b.devMajor(), e.DevMajor); err != nil {
		return fmt.Errorf("devmajor: %w", err)
	}
	if err := formatOctal(b.devMinor(), e.DevMinor); err != nil {
		return fmt.Errorf("devminor: %w", err)
	}

	b.setChecksum(b.computeChecksum())
	return nil
}

// splitName splits a path longer than the name field at the rightmost
// slash such that the prefix half fits in 155 bytes and the remainder
// fits in 100 bytes. The slash at the split point is dropped from both
// halves; the decode side joins the halves back without inserting one.
func splitName(name string) (prefix, rest string, ok bool) {
	for i := len(name) - 1; i > 0; i-- {
		if name[i] != '/' {
			continue
		}
		if i > prefixSize {
			continue // prefix half still too long
		}
		if len(name)-i-1 > nameSize {
			break // remainder only grows as i decreases
		}
		if len(name)-i-1 == 0 {
			continue // remainder must be non-empty
		}
		return name[:i], name[i+1:], true
	}
	return "", "", false
}
