// Package backup manages timestamped copies of the config file kept next to
// it: "<config>.backup.<stamp>" before a clean and
// "<config>.recovery-backup.<stamp>" before a recovery overwrites it.
package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/models"
	"github.com/starford/imgclean/internal/storage"
)

// Backup kinds.
const (
	KindBackup   = "backup"
	KindRecovery = "recovery-backup"
)

// StampLayout formats backup and image directory timestamps.
const StampLayout = "20060102_150405"

// Manager creates and finds backups of one config file.
type Manager struct {
	configPath string
	now        func() time.Time
}

// NewManager returns a Manager for configPath.
func NewManager(configPath string) *Manager {
	return &Manager{configPath: configPath, now: time.Now}
}

// WithClock replaces the time source used for new backup names.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Path returns the name a backup of the given kind taken now would get.
func (m *Manager) Path(kind string) string {
	return m.configPath + "." + kind + "." + m.now().Format(StampLayout)
}

// Create writes data verbatim as a new backup of the given kind and returns
// its path. Backups hold the same private data as the config, so they are
// not world-readable.
func (m *Manager) Create(kind string, data []byte) (string, error) {
	p := m.Path(kind)
	if err := storage.WriteFile(p, data, 0o600); err != nil {
		return "", fmt.Errorf("backup: create %s: %w", kind, err)
	}
	return p, nil
}

// Remove deletes a backup created by this run.
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup: remove: %w", err)
	}
	return nil
}

// List returns every backup of the config, of both kinds, sorted by file
// name. A missing config directory yields an empty list.
func (m *Manager) List() ([]models.Backup, error) {
	dir := filepath.Dir(m.configPath)
	base := filepath.Base(m.configPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("backup: read dir: %w", err)
	}

	var out []models.Backup
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		kind, stamp, ok := parseName(base, e.Name())
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		b := models.Backup{
			Path: filepath.Join(dir, e.Name()),
			Name: e.Name(),
			Kind: kind,
			Size: info.Size(),
		}
		if ts, err := time.ParseInLocation(StampLayout, stamp, time.Local); err == nil {
			b.CreatedAt = ts
		}
		out = append(out, b)
	}

	slices.SortFunc(out, func(a, b models.Backup) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

// Largest returns the biggest pre-clean backup strictly larger than minSize.
// Recovery safety copies are never candidates. It returns apperr.ErrNoBackups
// when nothing qualifies.
func (m *Manager) Largest(minSize int64) (models.Backup, error) {
	all, err := m.List()
	if err != nil {
		return models.Backup{}, err
	}
	var (
		best  models.Backup
		found bool
	)
	for _, b := range all {
		if b.Kind != KindBackup || b.Size <= minSize {
			continue
		}
		if !found || b.Size > best.Size {
			best, found = b, true
		}
	}
	if !found {
		return models.Backup{}, fmt.Errorf("backup: larger than %d bytes: %w", minSize, apperr.ErrNoBackups)
	}
	return best, nil
}

// parseName matches "<base>.<kind>.<stamp>" and returns kind and stamp.
func parseName(base, name string) (kind, stamp string, ok bool) {
	rest, found := strings.CutPrefix(name, base+".")
	if !found {
		return "", "", false
	}
	for _, k := range []string{KindRecovery, KindBackup} {
		if s, found := strings.CutPrefix(rest, k+"."); found && s != "" {
			return k, s, true
		}
	}
	return "", "", false
}
