// Package ustar implements a codec for the tar/ustar archive wire
// format: a pull-based [Reader] that decodes a byte stream into a lazy
// sequence of entries with bounded payload views, and a [Writer] that
// encodes entries back into a conformant byte stream.
//
// The reader advances exclusively by sequential reads and never seeks,
// so it works identically over files and strictly forward-only sources
// such as decompression pipes. Callers may consume none, some, or all
// of an entry's payload before asking for the next entry; the reader
// resynchronizes to the next 512-byte block boundary on its own.
//
// # Quick Start
//
// Scan an archive:
//
//	r := ustar.NewReader(f)
//	for {
//	    entry, view, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    // view reads are clipped to entry.Size bytes
//	}
//
// Produce one:
//
//	w := ustar.NewWriter(out)
//	err := w.WriteEntry(ustar.Entry{Name: "a.txt", Kind: ustar.KindFile, Mode: 0o644, Size: 5}, strings.NewReader("hello"))
//	...
//	err = w.Close() // writes the archive terminator
//
// [Archive] and [Extract] provide the directory-tree collaborators on
// top of the codec, including optional gzip/zstd stream compression.
//
// The package supports the POSIX ustar dialect plus pre-POSIX legacy
// headers. PAX extended headers, GNU long names and sparse files are
// out of scope; such members are traversed but not surfaced.
package ustar
