package ustar

import "time"

// Kind identifies the type of an archive entry, decoded from the
// header typeflag byte. The set is closed: any typeflag outside the
// codes defined by the format maps to KindUnknown.
type Kind uint8

const (
	KindFile Kind = iota
	KindHardLink
	KindSymlink
	KindCharDevice
	KindBlockDevice
	KindDir
	KindFIFO
	KindContiguous
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindHardLink:
		return "hardlink"
	case KindSymlink:
		return "symlink"
	case KindCharDevice:
		return "chardev"
	case KindBlockDevice:
		return "blockdev"
	case KindDir:
		return "dir"
	case KindFIFO:
		return "fifo"
	case KindContiguous:
		return "contiguous"
	default:
		return "unknown"
	}
}

// hasPayload reports whether entries of this kind carry payload bytes
// in the archive. Unknown kinds are assumed to carry payload so their
// data section is traversed correctly (this also steps over PAX and
// GNU extension members, which store their records as payload).
func (k Kind) hasPayload() bool {
	switch k {
	case KindFile, KindContiguous, KindUnknown:
		return true
	default:
		return false
	}
}

// Entry describes one archive member. It carries the member's
// metadata, not its bytes; payload travels separately as an
// [EntryView] on the read path or an io.Reader on the write path.
type Entry struct {
	// Name is the member path, forward-slash separated. Directory
	// entries conventionally end in "/".
	Name string

	Kind Kind

	// Mode holds the POSIX permission bits.
	Mode int64

	UID int64
	GID int64

	// Size is the payload byte count. It is always 0 for kinds that
	// carry no payload (directories, links, devices, FIFOs).
	Size int64

	// ModTime is stored on the wire as whole seconds since the Unix
	// epoch; sub-second precision does not survive a round trip.
	ModTime time.Time

	// LinkName is the target of hard link and symlink entries.
	LinkName string

	// UserName and GroupName are ustar extension fields; both are
	// empty when decoding a pre-POSIX legacy header.
	UserName  string
	GroupName string

	// DevMajor and DevMinor are meaningful for device kinds only.
	DevMajor int64
	DevMinor int64

	// Magic and Version identify the header dialect: "ustar" and "00"
	// for POSIX ustar headers, empty for legacy headers.
	Magic   string
	Version string
}
