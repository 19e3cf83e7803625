// Package streamscan implements the TagScanner: fence stripping, opening/
// closing tag detection, and attribute parsing over a growing, append-only
// byte buffer. It is stateless between calls: every function takes the
// current buffer and returns a fresh result.
package streamscan

import "bytes"

// StripFences removes whole lines beginning with a triple-backtick fence
// (with or without a language tag) when the fence occupies an entire line
// on its own, at buffer start or right after a newline. All other content,
// including backticks that do not open a line, is preserved untouched.
//
// Applied fresh on the whole buffer every call, so it is safe to call
// this before every token-processing pass.
func StripFences(buf []byte) []byte {
	if len(buf) == 0 {
		return buf
	}
	var out []byte
	rest := buf
	for len(rest) > 0 {
		nl := bytes.IndexByte(rest, '\n')
		var line []byte
		var hasNL bool
		if nl < 0 {
			line = rest
			rest = nil
		} else {
			line = rest[:nl]
			rest = rest[nl+1:]
			hasNL = true
		}
		if isFenceLine(line) {
			// Drop the line and its trailing newline entirely.
			continue
		}
		out = append(out, line...)
		if hasNL {
			out = append(out, '\n')
		}
	}
	return out
}

// isFenceLine reports whether line, once its leading whitespace is
// trimmed, begins with a triple-backtick fence marker.
func isFenceLine(line []byte) bool {
	trimmed := bytes.TrimLeft(line, " \t\r")
	return bytes.HasPrefix(trimmed, []byte("```"))
}
