// Package locate resolves where the config file lives and where extracted
// images go.
package locate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/checksum"
)

// Resolver knows the per-platform search order. The zero value is not
// usable; call NewResolver.
type Resolver struct {
	goos   string
	getenv func(string) string
	home   func() (string, error)
}

// NewResolver returns a Resolver for the running platform.
func NewResolver() *Resolver {
	return &Resolver{goos: runtime.GOOS, getenv: os.Getenv, home: os.UserHomeDir}
}

// NewResolverFor returns a Resolver with injected platform lookups.
func NewResolverFor(goos string, getenv func(string) string, home func() (string, error)) *Resolver {
	return &Resolver{goos: goos, getenv: getenv, home: home}
}

// join builds Windows paths by hand so they come out the same on any host.
func (r *Resolver) join(elem ...string) string {
	if r.goos != "windows" {
		return filepath.Join(elem...)
	}
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		if e = strings.TrimRight(e, `/\`); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, `\`)
}

func (r *Resolver) homeDir() string {
	h, err := r.home()
	if err != nil {
		return ""
	}
	return h
}

// ConfigCandidates returns every path searched for the config, in order.
func (r *Resolver) ConfigCandidates() []string {
	if r.goos == "windows" {
		return []string{
			r.join(r.getenv("USERPROFILE"), ".claude.json"),
			r.join(r.getenv("APPDATA"), "claude", "claude.json"),
			r.join(r.getenv("LOCALAPPDATA"), "claude", "claude.json"),
		}
	}
	home := r.homeDir()
	return []string{
		filepath.Join(home, ".claude.json"),
		filepath.Join(home, ".config", "claude", "claude.json"),
	}
}

// FindConfig returns explicit when set and existing, otherwise the first
// existing candidate. The error wraps apperr.ErrConfigNotFound and lists every
// path checked.
func (r *Resolver) FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if isFile(explicit) {
			return explicit, nil
		}
		return "", apperr.NotFound(apperr.ErrConfigNotFound, explicit)
	}
	candidates := r.ConfigCandidates()
	for _, c := range candidates {
		if isFile(c) {
			return c, nil
		}
	}
	return "", apperr.NotFound(apperr.ErrConfigNotFound, candidates...)
}

// ImagesDir returns the default base directory for extracted images.
func (r *Resolver) ImagesDir() string {
	if r.goos == "windows" {
		return r.join(r.getenv("USERPROFILE"), ".claude", "history_images")
	}
	return filepath.Join(r.homeDir(), ".claude", "history_images")
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// ProjectDirName returns "<name>_<hash>" for a project key: the last path
// element with unsafe characters replaced, and the short MD5 of the whole key.
// Keys without a usable last element are named "unknown".
func ProjectDirName(project string) string {
	name := strings.TrimRight(project, `/\`)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeChars.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		name = "unknown"
	}
	return name + "_" + checksum.Short(project)
}

// ProjectDirs hands out one output directory per project for a single run:
// <base>/<ProjectDirName>/<stamp>.
type ProjectDirs struct {
	base  string
	stamp string

	mu      sync.Mutex
	created map[string]string
}

// NewProjectDirs returns directories under base stamped with now.
func NewProjectDirs(base string, now time.Time, layout string) *ProjectDirs {
	return &ProjectDirs{
		base:    base,
		stamp:   now.Format(layout),
		created: make(map[string]string),
	}
}

// Path returns the directory for project without creating it.
func (d *ProjectDirs) Path(project string) string {
	return filepath.Join(d.base, ProjectDirName(project), d.stamp)
}

// For returns a function that creates the project's directory on first use
// and returns its path.
func (d *ProjectDirs) For(project string) func() (string, error) {
	return func() (string, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if p, ok := d.created[project]; ok {
			return p, nil
		}
		p := d.Path(project)
		if err := os.MkdirAll(p, 0o755); err != nil {
			return "", fmt.Errorf("locate: create %s: %w", p, err)
		}
		d.created[project] = p
		return p, nil
	}
}

// Created returns the number of directories created so far.
func (d *ProjectDirs) Created() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.created)
}
