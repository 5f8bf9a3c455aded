package pysource

import (
	"regexp"
	"strings"
)

var typingPrefix = regexp.MustCompile(`\btyping\.`)

// StripTypingPrefix removes "typing." qualifiers (typing.Optional → Optional).
func StripTypingPrefix(ann string) string {
	return typingPrefix.ReplaceAllString(ann, "")
}

// Unquote strips the quotes of a forward-reference annotation ("User" → User).
func Unquote(ann string) string {
	ann = strings.TrimSpace(ann)
	if len(ann) >= 2 && (ann[0] == '"' || ann[0] == '\'') && ann[len(ann)-1] == ann[0] {
		return strings.TrimSpace(ann[1 : len(ann)-1])
	}
	return ann
}

// IsUnionWithNone reports whether an annotation admits None:
// Optional[T], Union[..., None] or T | None.
func IsUnionWithNone(ann string) bool {
	s := strings.ReplaceAll(StripTypingPrefix(Unquote(ann)), " ", "")
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "Optional[") && strings.HasSuffix(s, "]") {
		return true
	}
	if inner, ok := subscript(s, "Union"); ok && containsNone(SplitTopLevel(inner, ',')) {
		return true
	}
	parts := SplitTopLevel(s, '|')
	return len(parts) > 1 && containsNone(parts)
}

// StripNoneUnion unwraps Optional[T], Union[T, None] and T | None down to T.
// Unions with more than one non-None member are returned unchanged.
func StripNoneUnion(ann string) string {
	s := strings.TrimSpace(ann)
	for {
		if inner, ok := subscript(s, "Optional"); ok {
			s = strings.TrimSpace(inner)
			continue
		}
		var members []string
		if inner, ok := subscript(s, "Union"); ok {
			members = SplitTopLevel(inner, ',')
		} else {
			members = SplitTopLevel(s, '|')
		}
		if len(members) < 2 {
			return s
		}
		rest := withoutNone(members)
		if len(rest) != 1 || len(rest) == len(members) {
			return s
		}
		s = rest[0]
	}
}

// SplitTopLevel splits s on sep outside of brackets.
func SplitTopLevel(s string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// subscript returns the bracketed argument of name[...] when s is exactly that form.
func subscript(s, name string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, name) || !strings.HasSuffix(s, "]") {
		return "", false
	}
	rest := strings.TrimSpace(s[len(name):])
	if !strings.HasPrefix(rest, "[") {
		return "", false
	}
	// Optional[a][b] is not a single subscript.
	depth := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
			if depth == 0 && i != len(rest)-1 {
				return "", false
			}
		}
	}
	return rest[1 : len(rest)-1], true
}

func withoutNone(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !isNone(p) {
			out = append(out, p)
		}
	}
	return out
}

func containsNone(parts []string) bool {
	for _, p := range parts {
		if isNone(strings.TrimSpace(p)) {
			return true
		}
	}
	return false
}

func isNone(s string) bool {
	return s == "None" || s == "NoneType" || s == "type(None)"
}
