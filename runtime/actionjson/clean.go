package actionjson

import "strings"

// Clean applies the lenient-JSON cleaning rules, in order: strip "// ..."
// line comments, strip "/* ... */" block comments, strip trailing commas
// before ']' or '}', then trim surrounding whitespace.
// Comment and string scanning are string-aware so "//" or "/*" occurring
// inside a JSON string value is never mistaken for a comment.
func Clean(raw string) string {
	noComments := stripComments(raw)
	noTrailingCommas := stripTrailingCommas(noComments)
	return strings.TrimSpace(noTrailingCommas)
}

type scanState int

const (
	stateDefault scanState = iota
	stateInString
	stateInLineComment
	stateInBlockComment
)

// stripComments removes "// ..." and "/* ... */" comments outside of JSON
// string literals.
func stripComments(s string) string {
	var out strings.Builder
	state := stateDefault
	escaped := false
	n := len(s)
	for i := 0; i < n; i++ {
		c := s[i]
		switch state {
		case stateInString:
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				state = stateDefault
			}
		case stateInLineComment:
			if c == '\n' {
				state = stateDefault
				out.WriteByte(c)
			}
			// comment body is discarded, including the newline's absence.
		case stateInBlockComment:
			if c == '*' && i+1 < n && s[i+1] == '/' {
				state = stateDefault
				i++
			}
		default: // stateDefault
			if c == '"' {
				state = stateInString
				out.WriteByte(c)
				continue
			}
			if c == '/' && i+1 < n && s[i+1] == '/' {
				state = stateInLineComment
				i++
				continue
			}
			if c == '/' && i+1 < n && s[i+1] == '*' {
				state = stateInBlockComment
				i++
				continue
			}
			out.WriteByte(c)
		}
	}
	return out.String()
}

// stripTrailingCommas removes a comma that is followed (ignoring
// whitespace) by ']' or '}', outside of JSON string literals.
func stripTrailingCommas(s string) string {
	var out strings.Builder
	inString := false
	escaped := false
	n := len(s)
	for i := 0; i < n; i++ {
		c := s[i]
		if inString {
			out.WriteByte(c)
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < n && isJSONSpace(s[j]) {
				j++
			}
			if j < n && (s[j] == ']' || s[j] == '}') {
				// Drop the comma; the whitespace between it and the
				// closer is harmless and left intact.
				continue
			}
		}
		out.WriteByte(c)
	}
	return out.String()
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
