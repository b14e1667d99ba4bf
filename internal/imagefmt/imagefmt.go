// Package imagefmt identifies image formats from their leading bytes.
package imagefmt

import (
	"bytes"
	"encoding/base64"
	"strings"

	"github.com/starford/imgclean/internal/b64"
)

// Format is an image MIME subtype such as "png" or "svg+xml".
type Format string

// Known formats. Unknown means the signature was not recognised.
const (
	Unknown Format = ""
	PNG     Format = "png"
	JPEG    Format = "jpeg"
	GIF     Format = "gif"
	WEBP    Format = "webp"
	BMP     Format = "bmp"
	SVG     Format = "svg+xml"
)

const (
	// MinSniffLen is the shortest input Detect will classify.
	MinSniffLen = 12
	// Base64SniffChars is how much of a base64 blob DetectBase64 decodes.
	Base64SniffChars = 100
	svgWindow        = 200
)

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

var extensions = map[string]string{
	"png":     ".png",
	"jpeg":    ".jpg",
	"jpg":     ".jpg",
	"gif":     ".gif",
	"webp":    ".webp",
	"bmp":     ".bmp",
	"svg+xml": ".svg",
}

// Detect returns the format whose signature starts data, or Unknown.
// Inputs shorter than MinSniffLen are never classified.
func Detect(data []byte) Format {
	if len(data) < MinSniffLen {
		return Unknown
	}
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return PNG
	case bytes.HasPrefix(data, jpegMagic):
		return JPEG
	case bytes.HasPrefix(data, []byte("GIF8")):
		return GIF
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Contains(data[:12], []byte("WEBP")):
		return WEBP
	case bytes.HasPrefix(data, []byte("BM")):
		return BMP
	}

	head := data
	if len(head) > svgWindow {
		head = head[:svgWindow]
	}
	text := strings.ToLower(strings.ToValidUTF8(string(head), ""))
	if strings.Contains(text, "<svg") && strings.Contains(text, "xml") {
		return SVG
	}
	return Unknown
}

// DetectBase64 sniffs a base64 blob by decoding only its first
// Base64SniffChars non-whitespace characters.
func DetectBase64(s string) Format {
	head, err := base64.StdEncoding.DecodeString(b64.Pad(b64.Prefix(s, Base64SniffChars)))
	if err != nil {
		return Unknown
	}
	return Detect(head)
}

// Extension returns the file extension for f, defaulting to ".png".
func (f Format) Extension() string {
	return ExtensionForMIME(string(f))
}

// ExtensionForMIME maps an image MIME subtype to a file extension.
// Unrecognised subtypes map to ".png".
func ExtensionForMIME(subtype string) string {
	if ext, ok := extensions[strings.ToLower(subtype)]; ok {
		return ext
	}
	return ".png"
}
