// Package extract decodes embedded image payloads and writes them to disk.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/b64"
	"github.com/starford/imgclean/internal/checksum"
	"github.com/starford/imgclean/internal/imagefmt"
	"github.com/starford/imgclean/internal/payload"
	"github.com/starford/imgclean/internal/storage"
)

// Result describes one image written to disk.
type Result struct {
	Path     string          // absolute path of the written file
	Format   imagefmt.Format // Unknown when a data URI names an unmapped subtype
	Size     int             // decoded byte count
	Checksum string          // SHA-256 of the decoded bytes
	Sequence int
}

// Extractor writes image payloads as image_NNN.<ext> files.
type Extractor struct {
	logger *slog.Logger
}

// New returns an Extractor. A nil logger uses slog.Default.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// FileName returns the file name for the seq-th image.
func FileName(seq int, ext string) string {
	return fmt.Sprintf("image_%03d%s", seq, ext)
}

// Extract decodes value and writes it under outputDir.
//
// Data URIs must match "data:image/<subtype>;base64,<payload>" and take their
// extension from the subtype. Raw base64 blobs take it from the decoded
// signature and fail when the signature is unknown. Every failure wraps
// apperr.ErrExtraction and leaves no file behind.
func (e *Extractor) Extract(value, outputDir string, seq int) (Result, error) {
	var (
		raw    string
		format imagefmt.Format
		ext    string
	)

	if uri, ok := payload.ParseDataURI(value); ok {
		raw = uri.Payload
		format = imagefmt.Format(uri.Subtype)
		ext = imagefmt.ExtensionForMIME(uri.Subtype)
	} else if payload.IsDataURI(value) {
		return Result{}, fmt.Errorf("%w: data URI without a base64 payload", apperr.ErrExtraction)
	} else {
		if imagefmt.DetectBase64(value) == imagefmt.Unknown {
			return Result{}, fmt.Errorf("%w: could not detect image format from base64 data", apperr.ErrExtraction)
		}
		raw = value
	}

	data, err := b64.Decode(raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode base64: %v", apperr.ErrExtraction, err)
	}

	if ext == "" {
		format = imagefmt.Detect(data)
		ext = format.Extension()
	}

	path, err := filepath.Abs(filepath.Join(outputDir, FileName(seq, ext)))
	if err != nil {
		return Result{}, fmt.Errorf("%w: resolve path: %v", apperr.ErrExtraction, err)
	}
	if err := storage.WriteFile(path, data, 0o644); err != nil {
		return Result{}, fmt.Errorf("%w: %v", apperr.ErrExtraction, err)
	}

	e.logger.Debug("extract: wrote image",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
		slog.String("format", string(format)))

	return Result{
		Path:     path,
		Format:   format,
		Size:     len(data),
		Checksum: checksum.Sum(data),
		Sequence: seq,
	}, nil
}
