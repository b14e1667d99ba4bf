// Package api implements the read-only HTTP browser over runs, backups and
// extracted images using chi.
package api

import (
	"context"

	"github.com/starford/imgclean/internal/models"
)

// Service is the data the browser exposes. *cleaner.Service implements it.
type Service interface {
	Runs(ctx context.Context, limit int) ([]models.Run, error)
	RunImages(ctx context.Context, runID string) ([]models.Image, error)
	Backups(ctx context.Context) ([]models.Backup, error)
}

// RunList wraps run listings.
type RunList struct {
	Runs []models.Run `json:"runs"`
}

// ImageList wraps the images of one run. URL is set for images that live
// under the served images directory.
type ImageList struct {
	RunID  string      `json:"run_id"`
	Images []ImageItem `json:"images"`
}

// ImageItem is one image in an ImageList.
type ImageItem struct {
	models.Image
	URL string `json:"url,omitempty"`
}

// BackupList wraps backup listings.
type BackupList struct {
	Backups []models.Backup `json:"backups"`
}
