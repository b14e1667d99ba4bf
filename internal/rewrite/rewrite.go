// Package rewrite replaces embedded images in a JSON document with markers.
//
// The walk is a depth-first structural copy: objects and arrays are rebuilt
// member by member, and every string leaf at any depth goes through the
// payload classifier. Classified strings become either a file reference
// (when the image was written out) or the removed marker.
package rewrite

import (
	"fmt"
	"log/slog"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/extract"
	"github.com/starford/imgclean/internal/jsonvalue"
	"github.com/starford/imgclean/internal/payload"
)

// Replacement markers written in place of image strings.
const (
	RemovedMarker    = "[IMAGE_REMOVED]"
	fileMarkerPrefix = "[IMAGE_FILE:"
)

// FileMarker returns the reference written for an image stored at path.
// The path is embedded literally.
func FileMarker(path string) string {
	return fileMarkerPrefix + path + "]"
}

// Stats accumulates counters across a whole traversal.
type Stats struct {
	ItemsCleaned     int   `json:"items_cleaned"`
	TotalRemovedSize int64 `json:"total_removed_size"`
	ImagesExtracted  int   `json:"images_extracted"`
}

// Extractor writes one image payload under dir as the seq-th file.
type Extractor interface {
	Extract(value, dir string, seq int) (extract.Result, error)
}

// Options controls a single Rewrite call.
type Options struct {
	// PreserveImages enables extraction. When false every classified image
	// becomes RemovedMarker without touching the disk.
	PreserveImages bool
	// OutputDir returns the directory for extracted files. It is called
	// only when an extraction is about to happen, so callers can create the
	// directory lazily. Nil disables extraction.
	OutputDir func() (string, error)
	Extractor Extractor
	// OnExtract, if set, observes every successful extraction.
	OnExtract func(extract.Result)
	Logger    *slog.Logger
}

// Rewrite returns a copy of doc with every classified image replaced.
// stats is updated in place. The only error is a failure to obtain the
// output directory, which wraps apperr.ErrDirectory; extraction failures
// are logged and degrade to RemovedMarker.
func Rewrite(doc jsonvalue.Value, stats *Stats, opts Options) (jsonvalue.Value, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	w := &walker{stats: stats, opts: opts}
	return w.value(doc)
}

type walker struct {
	stats *Stats
	opts  Options
}

func (w *walker) value(v jsonvalue.Value) (jsonvalue.Value, error) {
	switch v.Kind() {
	case jsonvalue.Object:
		return v.MapMembers(func(_ string, m jsonvalue.Value) (jsonvalue.Value, error) {
			return w.value(m)
		})
	case jsonvalue.Array:
		elems := v.Elems()
		out := make([]jsonvalue.Value, len(elems))
		for i, e := range elems {
			r, err := w.value(e)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			out[i] = r
		}
		return jsonvalue.ArrayValue(out...), nil
	case jsonvalue.String:
		s, _ := v.Str()
		if !payload.IsImageString(s) {
			return v, nil
		}
		marker, err := w.image(s)
		if err != nil {
			return jsonvalue.Value{}, err
		}
		return jsonvalue.StringValue(marker), nil
	case jsonvalue.Null, jsonvalue.Bool, jsonvalue.Number:
		return v, nil
	}
	return v, nil
}

// image counts s as removed before attempting extraction so the totals
// reflect bytes dropped from the document whatever the outcome.
func (w *walker) image(s string) (string, error) {
	w.stats.ItemsCleaned++
	w.stats.TotalRemovedSize += int64(len(s))
	seq := w.stats.ItemsCleaned

	if !w.opts.PreserveImages || w.opts.OutputDir == nil || w.opts.Extractor == nil {
		return RemovedMarker, nil
	}
	if !payload.IsExtractable(s) {
		w.opts.Logger.Debug("rewrite: image not extractable, removing",
			slog.Int("seq", seq), slog.Int("length", len(s)))
		return RemovedMarker, nil
	}

	dir, err := w.opts.OutputDir()
	if err != nil {
		return "", fmt.Errorf("rewrite: %w: %v", apperr.ErrDirectory, err)
	}

	res, err := w.opts.Extractor.Extract(s, dir, seq)
	if err != nil {
		w.opts.Logger.Warn("rewrite: extraction failed, removing image",
			slog.Int("seq", seq),
			slog.Int("length", len(s)),
			slog.String("error", err.Error()))
		return RemovedMarker, nil
	}
	w.stats.ImagesExtracted++
	if w.opts.OnExtract != nil {
		w.opts.OnExtract(res)
	}
	return FileMarker(res.Path), nil
}
