// Package testutil provides shared fixtures for image payloads and history documents.
package testutil

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	gifMagic  = []byte("GIF89a")
	jpegMagic = []byte{0xff, 0xd8, 0xff, 0xe0}
)

func withMagic(magic []byte, size int) []byte {
	if size < len(magic)+8 {
		size = len(magic) + 8
	}
	out := make([]byte, size)
	copy(out, magic)
	// Non-zero filler so truncation bugs show up in byte comparisons.
	for i := len(magic); i < size; i++ {
		out[i] = byte(i % 251)
	}
	return out
}

// PNGBytes returns size bytes that start with the PNG signature.
func PNGBytes(size int) []byte { return withMagic(pngMagic, size) }

// GIFBytes returns size bytes that start with the GIF89a signature.
func GIFBytes(size int) []byte { return withMagic(gifMagic, size) }

// JPEGBytes returns size bytes that start with a JPEG SOI marker.
func JPEGBytes(size int) []byte { return withMagic(jpegMagic, size) }

// DataURI wraps data as "data:image/<subtype>;base64,...".
func DataURI(subtype string, data []byte) string {
	return "data:image/" + subtype + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// HistoryDoc builds a config document with one project per key of projects,
// where each history item carries the given pastedContents value.
func HistoryDoc(t *testing.T, projects map[string][]any) []byte {
	t.Helper()
	projs := make(map[string]any, len(projects))
	for key, pasted := range projects {
		hist := make([]any, 0, len(pasted))
		for i, p := range pasted {
			hist = append(hist, map[string]any{
				"display":        "prompt " + string(rune('a'+i%26)),
				"pastedContents": p,
			})
		}
		projs[key] = map[string]any{"history": hist}
	}
	data, err := json.Marshal(map[string]any{
		"numStartups": 3,
		"projects":    projs,
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// WriteFile writes data under dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}
