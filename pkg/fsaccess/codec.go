package fsaccess

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// incompatibleSet holds the printable characters that cannot appear in a
// file name on at least one supported filesystem. Together with the
// control range below 0x20 they form the escape set.
const incompatibleSet = "\\/:?\"<>|*"

// IsLocalFsCompatible reports whether byte c may appear verbatim in a
// local file name.
func IsLocalFsCompatible(c byte) bool {
	return c >= 0x20 && !strings.ContainsRune(incompatibleSet, rune(c))
}

// EscapeFsIncompatible rewrites name so it is storable on any supported
// filesystem: incompatible bytes become %xx with lowercase hex, and the
// reserved names "." and ".." are escaped wholesale.
func EscapeFsIncompatible(name string) string {
	switch name {
	case ".":
		return "%2e"
	case "..":
		return "%2e%2e"
	}

	escaped := false
	for i := 0; i < len(name); i++ {
		if !IsLocalFsCompatible(name[i]) {
			escaped = true
			break
		}
	}
	if !escaped {
		return name
	}

	var b strings.Builder
	b.Grow(len(name) + 2)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if IsLocalFsCompatible(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02x", c)
		}
	}
	return b.String()
}

// UnescapeFsIncompatible reverses EscapeFsIncompatible. The wholesale
// escapes of the reserved names "." and ".." are restored first; beyond
// that, only a well-formed %xx sequence with lowercase hex digits that
// decodes to an incompatible byte is replaced. A dot decodes to a
// compatible byte, so without the whole-string cases the generic rule
// would leave "%2e" alone. Everything else stays untouched, so an
// unescaped percent sign in a name survives the round trip.
func UnescapeFsIncompatible(name string) string {
	switch name {
	case "%2e":
		return "."
	case "%2e%2e":
		return ".."
	}
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if name[i] == '%' && i+2 < len(name) {
			hi, ok1 := unhex(name[i+1])
			lo, ok2 := unhex(name[i+2])
			if ok1 && ok2 {
				c := hi<<4 | lo
				if !IsLocalFsCompatible(c) {
					b.WriteByte(c)
					i += 2
					continue
				}
			}
		}
		b.WriteByte(name[i])
	}
	return b.String()
}

// unhex decodes one lowercase hex digit.
func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	}
	return 0, false
}

// Normalize brings name into NFC so that names round-tripped through
// filesystems with decomposing semantics still compare equal. The name
// may contain NUL-separated segments which are normalized independently.
// A segment that is not valid UTF-8 poisons the whole name: the result
// is empty rather than a half-normalized string.
func Normalize(name string) string {
	if name == "" {
		return name
	}
	segs := strings.Split(name, "\x00")
	for i, s := range segs {
		if !utf8.ValidString(s) {
			return ""
		}
		segs[i] = norm.NFC.String(s)
	}
	return strings.Join(segs, "\x00")
}
