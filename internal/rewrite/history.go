package rewrite

import (
	"fmt"
	"log/slog"

	"github.com/starford/imgclean/internal/extract"
	"github.com/starford/imgclean/internal/jsonvalue"
)

// Document keys of the expected config shape:
// {"projects": {<key>: {"history": [{"pastedContents": ...}]}}}.
const (
	KeyProjects = "projects"
	KeyHistory  = "history"
	KeyPasted   = "pastedContents"
)

// HistoryOptions controls CleanHistory.
type HistoryOptions struct {
	PreserveImages bool
	// ProjectDir returns the lazy output directory for a project key.
	// Nil disables extraction.
	ProjectDir func(project string) func() (string, error)
	Extractor  Extractor
	OnExtract  func(project string, res extract.Result)
	Logger     *slog.Logger
}

// CleanHistory rewrites the pastedContents of every history item of every
// project and returns the updated copy of doc. Branches that are missing or
// have the wrong shape are skipped. stats accumulates over all projects, so
// extracted file sequence numbers never repeat within one call.
func CleanHistory(doc jsonvalue.Value, stats *Stats, opts HistoryOptions) (jsonvalue.Value, error) {
	out := doc.Clone()

	projects, ok := out.Get(KeyProjects)
	if !ok || !projects.IsObject() {
		return out, nil
	}

	for key, proj := range projects.Members() {
		hist, ok := proj.Get(KeyHistory)
		if !ok || !hist.IsArray() {
			continue
		}

		ropts := Options{
			PreserveImages: opts.PreserveImages,
			Extractor:      opts.Extractor,
			Logger:         opts.Logger,
		}
		if opts.ProjectDir != nil {
			ropts.OutputDir = opts.ProjectDir(key)
		}
		if opts.OnExtract != nil {
			ropts.OnExtract = func(res extract.Result) { opts.OnExtract(key, res) }
		}

		for _, item := range hist.Elems() {
			pasted, ok := item.Get(KeyPasted)
			if !ok {
				continue
			}
			cleaned, err := Rewrite(pasted, stats, ropts)
			if err != nil {
				return jsonvalue.Value{}, fmt.Errorf("project %q: %w", key, err)
			}
			item.Set(KeyPasted, cleaned)
		}
	}
	return out, nil
}
