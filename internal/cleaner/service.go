// Package cleaner runs the clean and recovery passes over a config file and
// reports on them.
package cleaner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/backup"
	"github.com/starford/imgclean/internal/catalog"
	"github.com/starford/imgclean/internal/extract"
	"github.com/starford/imgclean/internal/jsonvalue"
	"github.com/starford/imgclean/internal/locate"
	"github.com/starford/imgclean/internal/models"
	"github.com/starford/imgclean/internal/storage"
)

// DefaultAutoMinSize is the size a backup must exceed to be auto-detected.
const DefaultAutoMinSize = 5 << 20

// Catalog is the run ledger. Both sides are needed: runs are recorded while
// they happen and listed afterwards.
type Catalog interface {
	catalog.Recorder
	catalog.Reader
}

// Config configures a Service.
type Config struct {
	ConfigPath  string
	ImagesDir   string
	Indent      string
	AutoMinSize int64
	// Catalog may be nil; runs are then not recorded.
	Catalog Catalog
	Out     io.Writer
	Logger  *slog.Logger
	Now     func() time.Time
	NewID   func() string
}

// Service performs clean and recovery runs for one config file.
type Service struct {
	configPath  string
	imagesDir   string
	indent      string
	autoMinSize int64

	backups   *backup.Manager
	catalog   Catalog
	extractor *extract.Extractor
	out       io.Writer
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New returns a Service. Unset fields get defaults: stdout, slog.Default,
// time.Now, random UUIDs and DefaultAutoMinSize.
func New(cfg Config) *Service {
	s := &Service{
		configPath:  cfg.ConfigPath,
		imagesDir:   cfg.ImagesDir,
		indent:      cfg.Indent,
		autoMinSize: cfg.AutoMinSize,
		catalog:     cfg.Catalog,
		out:         cfg.Out,
		logger:      cfg.Logger,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.autoMinSize <= 0 {
		s.autoMinSize = DefaultAutoMinSize
	}
	s.backups = backup.NewManager(s.configPath).WithClock(s.now)
	s.extractor = extract.New(s.logger)
	return s
}

// ConfigPath returns the config file this service works on.
func (s *Service) ConfigPath() string { return s.configPath }

// ImagesDir returns the base directory for extracted images.
func (s *Service) ImagesDir() string { return s.imagesDir }

func (s *Service) projectDirs() *locate.ProjectDirs {
	return locate.NewProjectDirs(s.imagesDir, s.now(), backup.StampLayout)
}

// readFile reads path, mapping a missing file to a NotFoundError for the
// given sentinel.
func readFile(path string, missing error) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.NotFound(missing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func parse(path string, data []byte) (jsonvalue.Value, error) {
	doc, err := jsonvalue.Decode(data)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("%w: %s: %v", apperr.ErrParse, path, err)
	}
	return doc, nil
}

// writeConfig atomically replaces the config, keeping its permission bits.
func (s *Service) writeConfig(doc jsonvalue.Value) (int64, error) {
	data, err := jsonvalue.Encode(doc, s.indent)
	if err != nil {
		return 0, err
	}
	perm := os.FileMode(0o600)
	if info, err := os.Stat(s.configPath); err == nil {
		perm = info.Mode().Perm()
	}
	if err := storage.WriteFile(s.configPath, data, perm); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	return int64(len(data)), nil
}

// The catalog is a side ledger; its failures are logged and never abort a run.

func (s *Service) beginRun(ctx context.Context, r models.Run) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.BeginRun(ctx, r); err != nil {
		s.logger.Warn("catalog: begin run failed", slog.String("error", err.Error()))
	}
}

func (s *Service) addImage(ctx context.Context, runID, project string, res extract.Result) {
	if s.catalog == nil {
		return
	}
	err := s.catalog.AddImage(ctx, models.Image{
		RunID:    runID,
		Project:  project,
		Sequence: res.Sequence,
		Path:     res.Path,
		Format:   string(res.Format),
		Size:     int64(res.Size),
		Checksum: res.Checksum,
	})
	if err != nil {
		s.logger.Warn("catalog: add image failed", slog.String("error", err.Error()))
	}
}

func (s *Service) finishRun(ctx context.Context, r models.Run) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.FinishRun(ctx, r); err != nil {
		s.logger.Warn("catalog: finish run failed", slog.String("error", err.Error()))
	}
}

// failRun closes a run that stopped early.
func (s *Service) failRun(ctx context.Context, r models.Run, err error) {
	r.Error = err.Error()
	r.FinishedAt = s.now()
	s.finishRun(ctx, r)
}
