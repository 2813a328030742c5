package textutil

import "strings"

const truncationMarker = "... (truncated)"

// Truncate caps value at limit bytes, cutting on a rune boundary and appending
// a marker when anything was removed. Values at or under the limit are
// returned unchanged. Limits too small to hold the marker return a bare
// prefix.
func Truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= len(truncationMarker) {
		return strings.ToValidUTF8(value[:limit], "")
	}
	cut := limit - len(truncationMarker)
	for cut > 0 && !isRuneStart(value[cut]) {
		cut--
	}
	return value[:cut] + truncationMarker
}

// FirstLine returns the first non-empty line of value with surrounding
// whitespace removed. Useful for rendering multi-line output in single-row
// table cells.
func FirstLine(value string) string {
	for _, line := range strings.Split(value, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// Ternary is a generic conditional helper that returns a if cond is true, b otherwise.
func Ternary[T any](cond bool, a, b T) T {
	if cond {
		return a
	}
	return b
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
