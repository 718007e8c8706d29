// Package localpath implements the opaque, platform-encoded path
// representation used throughout the filesystem layer.
//
// A LocalPath is a raw byte sequence in the host OS's native encoding. All
// manipulation happens at the byte level with separator-width arithmetic:
// the local encoding may be variable-width, so a separator occurrence only
// counts when its byte offset is a multiple of the separator's byte width.
// Naive character indexing would corrupt multi-byte sequences.
package localpath

import (
	"bytes"
	"path/filepath"
)

// Separator is the platform path separator in local encoding. It may span
// more than one byte on platforms whose native encoding is wider than a
// byte per code unit.
type Separator []byte

// PlatformSeparator returns the separator for the running OS.
func PlatformSeparator() Separator {
	return Separator{byte(filepath.Separator)}
}

// LocalPath holds one filesystem path in platform-native encoding. The
// zero value is the empty path. Copying a LocalPath shares the backing
// bytes; use Clone before handing a copy to a mutating call.
type LocalPath struct {
	b []byte
}

// FromLocal wraps already locally-encoded bytes without copying. The
// caller must not reuse b afterwards.
func FromLocal(b []byte) LocalPath {
	return LocalPath{b: b}
}

// Clone returns a LocalPath with its own copy of the backing bytes.
func (p LocalPath) Clone() LocalPath {
	return LocalPath{b: bytes.Clone(p.b)}
}

// Bytes exposes the raw local encoding. The result must be treated as
// read-only.
func (p LocalPath) Bytes() []byte {
	return p.b
}

// Empty reports whether the path has no bytes.
func (p LocalPath) Empty() bool {
	return len(p.b) == 0
}

// Len returns the byte length of the path.
func (p LocalPath) Len() int {
	return len(p.b)
}

// Equal compares raw bytes. Paths are never re-normalized for comparison.
func (p LocalPath) Equal(o LocalPath) bool {
	return bytes.Equal(p.b, o.b)
}

// Append concatenates other's bytes onto p with no separator handling.
func (p *LocalPath) Append(other LocalPath) {
	p.b = append(p.b, other.b...)
}

// SeparatorAppend appends other to p, inserting the separator first if p
// is non-empty or always is set.
func (p *LocalPath) SeparatorAppend(other LocalPath, sep Separator, always bool) {
	if always || len(p.b) > 0 {
		p.b = append(p.b, sep...)
	}
	p.b = append(p.b, other.b...)
}

// SeparatorPrepend prepends other followed by the separator.
func (p *LocalPath) SeparatorPrepend(other LocalPath, sep Separator) {
	joined := make([]byte, 0, len(other.b)+len(sep)+len(p.b))
	joined = append(joined, other.b...)
	joined = append(joined, sep...)
	joined = append(joined, p.b...)
	p.b = joined
}

// TrimTrailingSeparator removes one trailing separator occurrence if the
// last separator-aligned slot holds one; otherwise it is a no-op.
func (p *LocalPath) TrimTrailingSeparator(sep Separator) {
	w := len(sep)
	if w == 0 || len(p.b) < w {
		return
	}
	// Round the length down to a multiple of the separator width and
	// inspect the last aligned slot.
	aligned := (len(p.b) / w) * w
	if aligned < w {
		return
	}
	if bytes.Equal(p.b[aligned-w:aligned], sep) {
		p.b = p.b[:aligned-w]
	}
}

// Truncate shortens the path to n bytes. It panics if n exceeds the
// current length.
func (p *LocalPath) Truncate(n int) {
	p.b = p.b[:n]
}

// FindNextSeparator scans forward from start for a separator occurrence
// whose byte offset is a multiple of the separator width. It returns the
// offset and true, or 0 and false when no aligned occurrence exists.
func (p LocalPath) FindNextSeparator(start int, sep Separator) (int, bool) {
	w := len(sep)
	if w == 0 {
		return 0, false
	}
	for start <= len(p.b)-w {
		rel := bytes.Index(p.b[start:], sep)
		if rel < 0 {
			return 0, false
		}
		pos := start + rel
		if pos%w == 0 {
			return pos, true
		}
		start = pos + 1
	}
	return 0, false
}

// FindPrevSeparator scans backward from start for an aligned separator
// occurrence, with the same alignment rule as FindNextSeparator.
func (p LocalPath) FindPrevSeparator(start int, sep Separator) (int, bool) {
	w := len(sep)
	if w == 0 {
		return 0, false
	}
	if start > len(p.b)-w {
		start = len(p.b) - w
	}
	for start >= 0 {
		rel := bytes.LastIndex(p.b[:start+w], sep)
		if rel < 0 {
			return 0, false
		}
		if rel%w == 0 {
			return rel, true
		}
		start = rel - 1
	}
	return 0, false
}

// LeafnameByteIndex returns the byte offset of the final path component,
// scanning backward one separator width at a time until an aligned
// separator or the start of the path.
func (p LocalPath) LeafnameByteIndex(sep Separator) int {
	w := len(sep)
	if w == 0 {
		return 0
	}
	i := len(p.b)
	for i >= w {
		i -= w
		if i == 0 {
			break
		}
		if bytes.Equal(p.b[i:i+w], sep) {
			i += w
			break
		}
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Leafname returns the final path component.
func (p LocalPath) Leafname(sep Separator) LocalPath {
	return p.SubpathFrom(p.LeafnameByteIndex(sep))
}

// BackEqual reports whether the path's bytes from pos to the end exactly
// equal suffix.
func (p LocalPath) BackEqual(pos int, suffix LocalPath) bool {
	n := len(suffix.b)
	return pos+n == len(p.b) && bytes.Equal(p.b[pos:], suffix.b)
}

// SubpathFrom extracts the byte range [pos, len) as a new LocalPath. No
// re-validation is performed.
func (p LocalPath) SubpathFrom(pos int) LocalPath {
	return LocalPath{b: bytes.Clone(p.b[pos:])}
}

// SubstrTo extracts the byte range [0, pos) as a new LocalPath.
func (p LocalPath) SubstrTo(pos int) LocalPath {
	return LocalPath{b: bytes.Clone(p.b[:pos])}
}

// IsContainingPathOf reports whether other lives inside p: other must
// start with p's bytes and either be exactly p or continue with a
// separator.
func (p LocalPath) IsContainingPathOf(other LocalPath, sep Separator) bool {
	if len(other.b) < len(p.b) {
		return false
	}
	if !bytes.Equal(other.b[:len(p.b)], p.b) {
		return false
	}
	if len(other.b) == len(p.b) {
		return true
	}
	return len(other.b) >= len(p.b)+len(sep) &&
		bytes.Equal(other.b[len(p.b):len(p.b)+len(sep)], sep)
}
