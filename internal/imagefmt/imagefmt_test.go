package imagefmt

import (
	"encoding/base64"
	"testing"
)

func pad(prefix []byte) []byte {
	out := make([]byte, 32)
	copy(out, prefix)
	return out
}

func TestDetectSignatures(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"png", pad([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}), PNG},
		{"jpeg", pad([]byte{0xff, 0xd8, 0xff, 0xe0}), JPEG},
		{"gif87", pad([]byte("GIF87a")), GIF},
		{"gif89", pad([]byte("GIF89a")), GIF},
		{"webp", pad([]byte("RIFF\x24\x00\x00\x00WEBPVP8 ")), WEBP},
		{"riff not webp", pad([]byte("RIFF\x24\x00\x00\x00WAVEfmt ")), Unknown},
		{"bmp", pad([]byte("BM")), BMP},
		{"svg", []byte(`<?xml version="1.0"?><SVG xmlns="http://www.w3.org/2000/svg"></SVG>`), SVG},
		{"svg without xml", []byte(`<svg width="10" height="10"></svg>`), Unknown},
		{"text", []byte("hello there, plain text"), Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Detect(tc.data); got != tc.want {
				t.Errorf("Detect = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetectShortInput(t *testing.T) {
	if got := Detect(nil); got != Unknown {
		t.Errorf("Detect(nil) = %q", got)
	}
	short := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0}
	if got := Detect(short); got != Unknown {
		t.Errorf("Detect(11 bytes) = %q, want Unknown", got)
	}
}

func TestDetectBase64(t *testing.T) {
	data := append([]byte("GIF89a"), make([]byte, 500)...)
	enc := base64.StdEncoding.EncodeToString(data)

	// Insert line breaks the way MIME encoders wrap output.
	wrapped := enc[:40] + "\n" + enc[40:80] + "\r\n" + enc[80:]

	if got := DetectBase64(wrapped); got != GIF {
		t.Errorf("DetectBase64 = %q, want gif", got)
	}
	if got := DetectBase64("not*base64*at*all"); got != Unknown {
		t.Errorf("DetectBase64(garbage) = %q, want Unknown", got)
	}
	if got := DetectBase64(base64.StdEncoding.EncodeToString(make([]byte, 300))); got != Unknown {
		t.Errorf("DetectBase64(zeros) = %q, want Unknown", got)
	}
}

func TestExtensionForMIME(t *testing.T) {
	cases := map[string]string{
		"png":     ".png",
		"jpeg":    ".jpg",
		"JPG":     ".jpg",
		"gif":     ".gif",
		"webp":    ".webp",
		"bmp":     ".bmp",
		"svg+xml": ".svg",
		"tiff":    ".png",
		"":        ".png",
	}
	for in, want := range cases {
		if got := ExtensionForMIME(in); got != want {
			t.Errorf("ExtensionForMIME(%q) = %q, want %q", in, got, want)
		}
	}
	if SVG.Extension() != ".svg" || Unknown.Extension() != ".png" {
		t.Error("Format.Extension mismatch")
	}
}
