// Package reconcile rebuilds a config from a backup that still holds its
// images, keeping whatever the current config gained since the backup.
//
// The current config is assumed to be the output of a lossy clean of the
// backup followed by append-only growth: projects are added and history
// arrays only grow at the tail. Entries that were reordered or deleted
// upstream are not detected.
package reconcile

import (
	"fmt"
	"log/slog"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/extract"
	"github.com/starford/imgclean/internal/jsonvalue"
	"github.com/starford/imgclean/internal/rewrite"
)

// ProjectHistory is the tail of one project's history that is missing from
// the backup.
type ProjectHistory struct {
	Project string
	Items   []jsonvalue.Value
}

// Differences is what the current config holds beyond the backup.
type Differences struct {
	// NewProjects lists project keys absent from the backup, in the order
	// they appear in the current config.
	NewProjects []string
	// NewHistory lists projects present in both whose current history is
	// longer than the backup's.
	NewHistory []ProjectHistory
}

// Empty reports whether the current config added nothing.
func (d Differences) Empty() bool {
	return len(d.NewProjects) == 0 && len(d.NewHistory) == 0
}

// NewItemCount returns the number of appended history items across projects.
func (d Differences) NewItemCount() int {
	n := 0
	for _, h := range d.NewHistory {
		n += len(h.Items)
	}
	return n
}

// DestructiveProjection returns backup with every image replaced by the
// removed marker, the shape a lossy clean would have produced.
func DestructiveProjection(backup jsonvalue.Value) (jsonvalue.Value, error) {
	var stats rewrite.Stats
	return rewrite.CleanHistory(backup, &stats, rewrite.HistoryOptions{PreserveImages: false})
}

// Diff compares the current config against the destructive projection of a
// backup. History is compared by length only.
func Diff(current, projected jsonvalue.Value) Differences {
	var d Differences

	curProjects, ok := current.Get(rewrite.KeyProjects)
	if !ok || !curProjects.IsObject() {
		return d
	}
	oldProjects, _ := projected.Get(rewrite.KeyProjects)

	for key, cur := range curProjects.Members() {
		old, ok := oldProjects.Get(key)
		if !ok {
			d.NewProjects = append(d.NewProjects, key)
			continue
		}
		curHist := historyOf(cur)
		oldLen := len(historyOf(old))
		if len(curHist) > oldLen {
			tail := make([]jsonvalue.Value, len(curHist)-oldLen)
			copy(tail, curHist[oldLen:])
			d.NewHistory = append(d.NewHistory, ProjectHistory{Project: key, Items: tail})
		}
	}
	return d
}

// Merge returns a copy of base with the differences taken from current
// applied: new projects are inserted verbatim and appended history items are
// added at the end of the matching project's history. Missing projects or
// history containers are created. A base that is not an object is returned
// as a plain copy.
func Merge(base, current jsonvalue.Value, diff Differences) jsonvalue.Value {
	out := base.Clone()
	if !out.IsObject() {
		return out
	}

	projects, ok := out.Get(rewrite.KeyProjects)
	if !ok || !projects.IsObject() {
		projects = jsonvalue.NewObject()
		out.Set(rewrite.KeyProjects, projects)
	}
	curProjects, _ := current.Get(rewrite.KeyProjects)

	for _, key := range diff.NewProjects {
		if p, ok := curProjects.Get(key); ok {
			projects.Set(key, p.Clone())
		}
	}

	for _, h := range diff.NewHistory {
		proj, ok := projects.Get(h.Project)
		if !ok || !proj.IsObject() {
			proj = jsonvalue.NewObject()
			projects.Set(h.Project, proj)
		}
		hist, ok := proj.Get(rewrite.KeyHistory)
		if !ok || !hist.IsArray() {
			hist = jsonvalue.ArrayValue()
		}
		items := make([]jsonvalue.Value, len(h.Items))
		for i, it := range h.Items {
			items[i] = it.Clone()
		}
		proj.Set(rewrite.KeyHistory, hist.Append(items...))
	}
	return out
}

// Options controls a reconciliation.
type Options struct {
	// ProjectDir returns the lazy output directory for a project key.
	ProjectDir func(project string) func() (string, error)
	Extractor  rewrite.Extractor
	OnExtract  func(project string, res extract.Result)
	Logger     *slog.Logger
}

// Result is the outcome of Reconcile.
type Result struct {
	Document jsonvalue.Value
	Diff     Differences
	// Stats counts the images found and extracted from the backup.
	Stats rewrite.Stats
}

// Reconcile restores the images of backup to disk and merges in what
// current gained since the backup was taken. Neither input is modified.
// Both documents must be objects; anything else wraps apperr.ErrParse.
func Reconcile(backup, current jsonvalue.Value, opts Options) (Result, error) {
	if !backup.IsObject() {
		return Result{}, fmt.Errorf("reconcile: %w: backup is %s, want object", apperr.ErrParse, backup.Kind())
	}
	if !current.IsObject() {
		return Result{}, fmt.Errorf("reconcile: %w: current config is %s, want object", apperr.ErrParse, current.Kind())
	}
	projected, err := DestructiveProjection(backup)
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: project backup: %w", err)
	}
	diff := Diff(current, projected)

	var stats rewrite.Stats
	restored, err := rewrite.CleanHistory(backup, &stats, rewrite.HistoryOptions{
		PreserveImages: true,
		ProjectDir:     opts.ProjectDir,
		Extractor:      opts.Extractor,
		OnExtract:      opts.OnExtract,
		Logger:         opts.Logger,
	})
	if err != nil {
		return Result{}, fmt.Errorf("reconcile: restore images: %w", err)
	}

	return Result{
		Document: Merge(restored, current, diff),
		Diff:     diff,
		Stats:    stats,
	}, nil
}

func historyOf(project jsonvalue.Value) []jsonvalue.Value {
	h, ok := project.Get(rewrite.KeyHistory)
	if !ok {
		return nil
	}
	return h.Elems()
}
