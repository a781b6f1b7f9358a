// Package sh provides shell-lexical helpers: quoting, joining, and
// splitting of command arguments.
package sh

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var unsafe = regexp.MustCompile(`[^\w@%+=:,./-]`)

type Stringer string

func (s Stringer) String() string {
	return string(s)
}

var _ fmt.Stringer = Stringer("")

// Quote quotes a string for safe use in shell commands.
func Quote(s string) string {
	if s == "" {
		return `''`
	}
	if !unsafe.MatchString(s) {
		return s
	}
	return `'` + strings.ReplaceAll(s, `'`, `\'`) + `'`
}

// Join joins command arguments with proper shell quoting.
func Join(parts []string) string {
	quotedParts := make([]string, len(parts))
	for i, part := range parts {
		quotedParts[i] = Quote(part)
	}
	return strings.Join(quotedParts, " ")
}

// sortkeys returns the sorted keys of a map.
func sortkeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, len(m))
	var i int
	for k := range m {
		keys[i] = k
		i++
	}
	slices.Sort(keys)
	return keys
}

// String returns a shell command string with environment variables
// and arguments.
func String(env map[string]string, arg ...string) Stringer {
	var ret strings.Builder
	for _, k := range sortkeys(env) {
		ret.WriteString(k + "=" + env[k] + " ")
	}
	ret.WriteString(Join(arg))
	return Stringer(ret.String())
}

// Split tokenizes s using shell-lexical rules: whitespace separates
// tokens, single quotes group literally, double quotes group with
// backslash escapes for `"`, `\`, `$` and backquote, and a bare
// backslash escapes the next character.
func Split(s string) ([]string, error) {
	var (
		tokens []string
		token  strings.Builder
		open   bool // a token is in progress, possibly empty
		i      int
	)
	emit := func() {
		if open {
			tokens = append(tokens, token.String())
			token.Reset()
			open = false
		}
	}
	for i < len(s) {
		switch c := s[i]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			emit()
			i++
		case c == '\'':
			end := strings.IndexByte(s[i+1:], '\'')
			if end < 0 {
				return nil, fmt.Errorf("sh: unterminated single quote")
			}
			token.WriteString(s[i+1 : i+1+end])
			open = true
			i += end + 2
		case c == '"':
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					switch s[i+1] {
					case '"', '\\', '$', '`':
						token.WriteByte(s[i+1])
						i += 2
						continue
					}
				}
				if s[i] == '"' {
					closed = true
					i++
					break
				}
				token.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("sh: unterminated double quote")
			}
			open = true
		case c == '\\':
			if i+1 >= len(s) {
				return nil, fmt.Errorf("sh: trailing backslash")
			}
			token.WriteByte(s[i+1])
			open = true
			i += 2
		default:
			token.WriteByte(c)
			open = true
			i++
		}
	}
	emit()
	return tokens, nil
}
