// ABOUTME: Best-effort parser for truncated JSON produced by streaming call arguments
// ABOUTME: Closes open strings/objects/arrays and drops dangling keys or partial literals

package partjson

import (
	"encoding/json"
	"strings"
)

// Parse attempts to parse potentially incomplete JSON object text into a map.
// Returns an empty map when nothing usable can be recovered.
func Parse(s string) map[string]any {
	v, ok := ParseValue(s)
	if !ok {
		return map[string]any{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// ParseValue parses potentially incomplete JSON text of any shape. The second
// result is false when the text could not be recovered.
func ParseValue(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	var v any
	if json.Unmarshal([]byte(s), &v) == nil {
		return v, true
	}
	if json.Unmarshal([]byte(Complete(s)), &v) == nil {
		return v, true
	}
	return nil, false
}

// Complete closes any JSON structures left open at the end of s.
func Complete(s string) string {
	var closers []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			closers = append(closers, '}')
		case c == '[':
			closers = append(closers, ']')
		case c == '}' || c == ']':
			if len(closers) > 0 {
				closers = closers[:len(closers)-1]
			}
		}
	}

	out := s
	if inString {
		// A lone trailing backslash would escape the closing quote.
		if escaped {
			out += `\`
		}
		out += `"`
	}

	var sb strings.Builder
	sb.WriteString(trimTrailingJunk(out, inString))
	for i := len(closers) - 1; i >= 0; i-- {
		sb.WriteByte(closers[i])
	}
	return sb.String()
}

var partialLiterals = []string{"tru", "tr", "t", "fals", "fal", "fa", "f", "nul", "nu", "n"}

// trimTrailingJunk removes trailing text that would make the closed JSON invalid:
// commas, colons, partial true/false/null literals, incomplete numbers, and a
// dangling object key left behind once its value is removed.
func trimTrailingJunk(s string, closedString bool) string {
	s = trimTrailingPunctuation(s)
	if closedString {
		return dropDanglingKey(s)
	}

	stripped := false
	for _, lit := range partialLiterals {
		if hasValueSuffix(s, lit) {
			s = s[:len(s)-len(lit)]
			stripped = true
			break
		}
	}
	if !stripped {
		trimmed := strings.TrimRight(s, "-+.eE")
		if trimmed != s && endsInNumberContext(trimmed) {
			s = trimmed
			stripped = true
		}
	}
	if !stripped {
		return dropDanglingKey(s)
	}
	s = trimTrailingPunctuation(s)
	return dropDanglingKey(s)
}

// hasValueSuffix reports whether lit ends s in value position (after ':', ',', '[' or space).
func hasValueSuffix(s, lit string) bool {
	if !strings.HasSuffix(s, lit) {
		return false
	}
	rest := strings.TrimRight(s[:len(s)-len(lit)], " \t\n\r")
	if rest == "" {
		return true
	}
	switch rest[len(rest)-1] {
	case ':', ',', '[':
		return true
	}
	return false
}

func endsInNumberContext(s string) bool {
	t := strings.TrimRight(s, " \t\n\r")
	if t == "" {
		return true
	}
	c := t[len(t)-1]
	return c == ':' || c == ',' || c == '[' || (c >= '0' && c <= '9')
}

// dropDanglingKey removes an object key that has no value, e.g. `{"a":1,"b"`.
func dropDanglingKey(s string) string {
	if len(s) < 2 || s[len(s)-1] != '"' {
		return s
	}
	open := lastUnescapedQuote(s[:len(s)-1])
	if open < 0 {
		return s
	}
	before := strings.TrimRight(s[:open], " \t\n\r")
	if before == "" {
		return s
	}
	switch before[len(before)-1] {
	case '{':
		return before
	case ',':
		// Only object members are dangling keys; array elements stay.
		if insideObject(before) {
			return before[:len(before)-1]
		}
	}
	return s
}

func lastUnescapedQuote(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] != '"' {
			continue
		}
		n := 0
		for j := i - 1; j >= 0 && s[j] == '\\'; j-- {
			n++
		}
		if n%2 == 0 {
			return i
		}
	}
	return -1
}

// insideObject reports whether the innermost open container at the end of s is an object.
func insideObject(s string) bool {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return len(stack) > 0 && stack[len(stack)-1] == '{'
}

func trimTrailingPunctuation(s string) string {
	return strings.TrimRight(s, ",: \t\n\r")
}
