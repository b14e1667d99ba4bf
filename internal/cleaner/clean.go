package cleaner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/backup"
	"github.com/starford/imgclean/internal/extract"
	"github.com/starford/imgclean/internal/models"
	"github.com/starford/imgclean/internal/rewrite"
)

// CleanReport is the outcome of one clean run.
type CleanReport struct {
	RunID      string
	ConfigPath string
	ImagesDir  string
	// BackupPath is empty when the backup was removed because nothing changed.
	BackupPath   string
	Stats        rewrite.Stats
	OriginalSize int64
	FinalSize    int64
}

// Changed reports whether the config was rewritten.
func (r CleanReport) Changed() bool { return r.Stats.ItemsCleaned > 0 }

// Reduction returns the size reduction in percent.
func (r CleanReport) Reduction() float64 {
	if r.OriginalSize == 0 {
		return 0
	}
	return (1 - float64(r.FinalSize)/float64(r.OriginalSize)) * 100
}

// Clean extracts every image in the config's history to disk and replaces
// it with a marker. The config is parsed before anything is written, backed
// up verbatim, and rewritten only when at least one image was found; an
// unneeded backup is removed again.
func (s *Service) Clean(ctx context.Context) (CleanReport, error) {
	rep, err := s.runClean(ctx)
	if err != nil {
		return rep, err
	}
	s.printClean(rep)
	return rep, nil
}

func (s *Service) runClean(ctx context.Context) (CleanReport, error) {
	data, err := readFile(s.configPath, apperr.ErrConfigNotFound)
	if err != nil {
		return CleanReport{}, err
	}
	doc, err := parse(s.configPath, data)
	if err != nil {
		return CleanReport{}, err
	}

	rep := CleanReport{
		RunID:        s.newID(),
		ConfigPath:   s.configPath,
		ImagesDir:    s.imagesDir,
		OriginalSize: int64(len(data)),
		FinalSize:    int64(len(data)),
	}
	logger := s.logger.With(slog.String("run_id", rep.RunID))

	rep.BackupPath, err = s.backups.Create(backup.KindBackup, data)
	if err != nil {
		return CleanReport{}, err
	}
	logger.Info("cleaner: backup saved", slog.String("path", rep.BackupPath))

	run := models.Run{
		ID:           rep.RunID,
		Mode:         models.ModeClean,
		ConfigPath:   s.configPath,
		BackupPath:   rep.BackupPath,
		OriginalSize: rep.OriginalSize,
		StartedAt:    s.now(),
	}
	s.beginRun(ctx, run)

	dirs := s.projectDirs()
	cleaned, err := rewrite.CleanHistory(doc, &rep.Stats, rewrite.HistoryOptions{
		PreserveImages: true,
		ProjectDir:     dirs.For,
		Extractor:      s.extractor,
		OnExtract: func(project string, res extract.Result) {
			s.addImage(ctx, rep.RunID, project, res)
		},
		Logger: logger,
	})
	if err != nil {
		err = fmt.Errorf("clean: %w", err)
		if rmErr := s.backups.Remove(rep.BackupPath); rmErr != nil {
			logger.Warn("cleaner: remove unneeded backup failed", slog.String("error", rmErr.Error()))
		} else {
			run.BackupPath = ""
		}
		s.failRun(ctx, run, err)
		return CleanReport{}, err
	}

	if rep.Changed() {
		if rep.FinalSize, err = s.writeConfig(cleaned); err != nil {
			s.failRun(ctx, run, err)
			return CleanReport{}, err
		}
		logger.Info("cleaner: config rewritten",
			slog.Int("items_cleaned", rep.Stats.ItemsCleaned),
			slog.Int("images_extracted", rep.Stats.ImagesExtracted),
			slog.Int("project_dirs", dirs.Created()),
			slog.Int64("final_size", rep.FinalSize))
	} else {
		if err := s.backups.Remove(rep.BackupPath); err != nil {
			logger.Warn("cleaner: remove unneeded backup failed", slog.String("error", err.Error()))
		} else {
			rep.BackupPath = ""
		}
	}

	run.BackupPath = rep.BackupPath
	run.ItemsCleaned = rep.Stats.ItemsCleaned
	run.ImagesExtracted = rep.Stats.ImagesExtracted
	run.RemovedBytes = rep.Stats.TotalRemovedSize
	run.FinalSize = rep.FinalSize
	run.FinishedAt = s.now()
	s.finishRun(ctx, run)

	return rep, nil
}
