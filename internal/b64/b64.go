// Package b64 normalizes loosely formatted base64 text before decoding.
package b64

import (
	"encoding/base64"
	"strings"
)

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// StripSpace removes every space, tab, and line break from s.
func StripSpace(s string) string {
	if !strings.ContainsAny(s, " \t\n\r") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if !isSpace(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Prefix returns the first n non-whitespace characters of s without
// walking the rest of the string.
func Prefix(s string, n int) string {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < len(s) && b.Len() < n; i++ {
		if !isSpace(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Pad appends '=' until the length of s is a multiple of 4.
func Pad(s string) string {
	if r := len(s) % 4; r != 0 {
		return s + strings.Repeat("=", 4-r)
	}
	return s
}

// Decode strips whitespace, re-pads, and decodes standard base64.
func Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(Pad(StripSpace(s)))
}
