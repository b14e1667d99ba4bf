package cleaner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/backup"
	"github.com/starford/imgclean/internal/extract"
	"github.com/starford/imgclean/internal/models"
	"github.com/starford/imgclean/internal/reconcile"
)

// AutoBackup selects the backup by size instead of naming it.
const AutoBackup = "auto"

// RecoverReport is the outcome of one recovery run.
type RecoverReport struct {
	RunID      string
	ConfigPath string
	ImagesDir  string
	BackupPath string
	// AutoDetected is set when the backup was picked by size.
	AutoDetected   bool
	BackupSize     int64
	CurrentSize    int64
	FinalSize      int64
	SafetyCopyPath string
	Result         reconcile.Result
}

// Recover restores the images held by a backup and merges in the history
// recorded since. from names the backup file; empty or AutoBackup picks the
// largest backup over the auto-detect size. The current config is saved as a
// recovery backup before it is overwritten. Nothing is written when either
// file is missing or malformed.
func (s *Service) Recover(ctx context.Context, from string) (RecoverReport, error) {
	rep, err := s.runRecover(ctx, from)
	if err != nil {
		return rep, err
	}
	s.printRecover(rep)
	return rep, nil
}

func (s *Service) runRecover(ctx context.Context, from string) (RecoverReport, error) {
	rep := RecoverReport{
		ConfigPath: s.configPath,
		ImagesDir:  s.imagesDir,
		BackupPath: from,
	}
	if from == "" || from == AutoBackup {
		b, err := s.backups.Largest(s.autoMinSize)
		if err != nil {
			return RecoverReport{}, err
		}
		rep.BackupPath = b.Path
		rep.AutoDetected = true
		fmt.Fprintf(s.out, "Auto-detected backup file: %s (%s)\n", b.Name, size(b.Size))
	}

	backupRaw, err := readFile(rep.BackupPath, apperr.ErrBackupNotFound)
	if err != nil {
		return RecoverReport{}, err
	}
	currentRaw, err := readFile(s.configPath, apperr.ErrCurrentNotFound)
	if err != nil {
		return RecoverReport{}, err
	}
	rep.BackupSize = int64(len(backupRaw))
	rep.CurrentSize = int64(len(currentRaw))

	backupDoc, err := parse(rep.BackupPath, backupRaw)
	if err != nil {
		return RecoverReport{}, err
	}
	currentDoc, err := parse(s.configPath, currentRaw)
	if err != nil {
		return RecoverReport{}, err
	}

	rep.RunID = s.newID()
	logger := s.logger.With(slog.String("run_id", rep.RunID))
	logger.Info("cleaner: recovering",
		slog.String("backup", rep.BackupPath),
		slog.Int64("backup_size", rep.BackupSize),
		slog.Int64("current_size", rep.CurrentSize))

	run := models.Run{
		ID:           rep.RunID,
		Mode:         models.ModeRecover,
		ConfigPath:   s.configPath,
		BackupPath:   rep.BackupPath,
		OriginalSize: rep.CurrentSize,
		StartedAt:    s.now(),
	}
	s.beginRun(ctx, run)

	dirs := s.projectDirs()
	rep.Result, err = reconcile.Reconcile(backupDoc, currentDoc, reconcile.Options{
		ProjectDir: dirs.For,
		Extractor:  s.extractor,
		OnExtract: func(project string, res extract.Result) {
			s.addImage(ctx, rep.RunID, project, res)
		},
		Logger: logger,
	})
	if err != nil {
		err = fmt.Errorf("recover: %w", err)
		s.failRun(ctx, run, err)
		return RecoverReport{}, err
	}

	rep.SafetyCopyPath, err = s.backups.Create(backup.KindRecovery, currentRaw)
	if err != nil {
		s.failRun(ctx, run, err)
		return RecoverReport{}, err
	}
	logger.Info("cleaner: current config saved", slog.String("path", rep.SafetyCopyPath))

	if rep.FinalSize, err = s.writeConfig(rep.Result.Document); err != nil {
		s.failRun(ctx, run, err)
		return RecoverReport{}, err
	}

	stats := rep.Result.Stats
	run.ItemsCleaned = stats.ItemsCleaned
	run.ImagesExtracted = stats.ImagesExtracted
	run.RemovedBytes = stats.TotalRemovedSize
	run.FinalSize = rep.FinalSize
	run.FinishedAt = s.now()
	s.finishRun(ctx, run)

	logger.Info("cleaner: recovery complete",
		slog.Int("images_recovered", stats.ImagesExtracted),
		slog.Int("new_projects", len(rep.Result.Diff.NewProjects)),
		slog.Int("new_history_items", rep.Result.Diff.NewItemCount()),
		slog.Int("projects_with_new_history", len(rep.Result.Diff.NewHistory)))
	return rep, nil
}
