// Package payload decides whether a JSON string carries an embedded image.
//
// Two shapes are recognised: data URIs ("data:image/<subtype>;base64,...")
// and raw base64 blobs that are both very long and made only of base64
// characters. Raw blobs are sampled, never fully decoded, during
// classification.
package payload

import (
	"strings"
	"unicode/utf8"

	"github.com/starford/imgclean/internal/imagefmt"
	"github.com/starford/imgclean/internal/jsonvalue"
)

const (
	// DataURIPrefix marks a string as an inline image unconditionally.
	DataURIPrefix = "data:image/"
	// LengthThreshold is the character count a raw blob must exceed.
	LengthThreshold = 50000
	// SampleSize is how many leading characters are charset-checked.
	SampleSize = 1000

	base64Marker = ";base64,"
)

// DataURI is the parsed form of "data:image/<Subtype>;base64,<Payload>".
type DataURI struct {
	Subtype string
	Payload string
}

// IsImage reports whether v is a string classified as an embedded image.
// Non-string values are never images.
func IsImage(v jsonvalue.Value) bool {
	s, ok := v.Str()
	return ok && IsImageString(s)
}

// IsImageString reports whether s is a data URI or a raw base64 blob.
func IsImageString(s string) bool {
	return IsDataURI(s) || looksLikeRawBase64(s)
}

// IsDataURI reports whether s starts with the image data-URI prefix.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, DataURIPrefix)
}

// IsExtractable reports whether s can be written out as an image file.
// Every data URI qualifies; a raw blob qualifies only when its decoded
// prefix carries a known image signature.
func IsExtractable(s string) bool {
	if IsDataURI(s) {
		return true
	}
	if !looksLikeRawBase64(s) {
		return false
	}
	return imagefmt.DetectBase64(s) != imagefmt.Unknown
}

// ParseDataURI splits a data URI into subtype and payload. The subtype is
// lowercased. Strings without a ";base64," section directly after the
// subtype, or with an empty payload, do not parse.
func ParseDataURI(s string) (DataURI, bool) {
	if !IsDataURI(s) {
		return DataURI{}, false
	}
	rest := s[len(DataURIPrefix):]
	semi := strings.IndexByte(rest, ';')
	if semi <= 0 {
		return DataURI{}, false
	}
	if !strings.HasPrefix(rest[semi:], base64Marker) {
		return DataURI{}, false
	}
	data := rest[semi+len(base64Marker):]
	if data == "" {
		return DataURI{}, false
	}
	return DataURI{
		Subtype: strings.ToLower(rest[:semi]),
		Payload: data,
	}, true
}

// looksLikeRawBase64 requires more than LengthThreshold characters and a
// leading sample made only of base64 characters and whitespace. A pure
// ASCII sample means the first SampleSize bytes are also the first
// SampleSize characters.
func looksLikeRawBase64(s string) bool {
	if len(s) <= LengthThreshold {
		return false
	}
	sample := s
	if len(sample) > SampleSize {
		sample = sample[:SampleSize]
	}
	for i := 0; i < len(sample); i++ {
		if !isBase64Char(sample[i]) {
			return false
		}
	}
	return utf8.RuneCountInString(s) > LengthThreshold
}

func isBase64Char(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '+', '/', '=', '\n', '\r', '\t', ' ':
		return true
	}
	return false
}
