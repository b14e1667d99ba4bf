package cleaner

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/backup"
	"github.com/starford/imgclean/internal/models"
)

// Backups returns the backups of the config, oldest first.
func (s *Service) Backups(_ context.Context) ([]models.Backup, error) {
	return s.backups.List()
}

// Runs returns recorded runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]models.Run, error) {
	if s.catalog == nil {
		return nil, apperr.ErrCatalogDisabled
	}
	return s.catalog.ListRuns(ctx, limit)
}

// RunImages returns the images written by one run. Unknown runs yield an
// error wrapping apperr.ErrNotFound.
func (s *Service) RunImages(ctx context.Context, runID string) ([]models.Image, error) {
	if s.catalog == nil {
		return nil, apperr.ErrCatalogDisabled
	}
	if _, err := s.catalog.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	return s.catalog.RunImages(ctx, runID)
}

// ListBackups prints the backups of the config.
func (s *Service) ListBackups(ctx context.Context) error {
	list, err := s.Backups(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(s.out, "No backup files found")
		return nil
	}
	fmt.Fprintln(s.out, "Available backup files:")
	for _, b := range list {
		label := ""
		if b.Kind == backup.KindRecovery {
			label = " [recovery]"
		}
		fmt.Fprintf(s.out, "  %s (%s)%s\n", b.Name, size(b.Size), label)
	}
	return nil
}

// ListRuns prints the most recent runs.
func (s *Service) ListRuns(ctx context.Context, limit int) error {
	runs, err := s.Runs(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(s.out, "No runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSTARTED\tCLEANED\tEXTRACTED\tREMOVED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Mode, humanize.RelTime(r.StartedAt, s.now(), "ago", "from now"),
			r.ItemsCleaned, r.ImagesExtracted, size(r.RemovedBytes))
	}
	return tw.Flush()
}
