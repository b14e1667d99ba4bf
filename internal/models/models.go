// Package models defines the record types shared by the catalog, the
// cleaner and the HTTP browser.
package models

import "time"

// Run modes.
const (
	ModeClean   = "clean"
	ModeRecover = "recover"
)

// Run is one clean or recovery pass over a config file.
type Run struct {
	ID              string    `json:"id"`
	Mode            string    `json:"mode"` // "clean" or "recover"
	ConfigPath      string    `json:"config_path"`
	BackupPath      string    `json:"backup_path,omitempty"`
	ItemsCleaned    int       `json:"items_cleaned"`
	ImagesExtracted int       `json:"images_extracted"`
	RemovedBytes    int64     `json:"removed_bytes"`
	OriginalSize    int64     `json:"original_size"`
	FinalSize       int64     `json:"final_size"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
	// Error is set when the run stopped before writing the config.
	Error string `json:"error,omitempty"`
}

// Image is one file written by a run.
type Image struct {
	RunID    string `json:"run_id"`
	Project  string `json:"project"`
	Sequence int    `json:"sequence"`
	Path     string `json:"path"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Backup describes a backup file next to the config.
type Backup struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // "backup" or "recovery-backup"
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}
