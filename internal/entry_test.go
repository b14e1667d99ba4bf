package internal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/locate"
	"github.com/starford/imgclean/internal/testutil"
)

type runEnv struct {
	home   string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	cfg    *Config
}

func newRunEnv(t *testing.T) *runEnv {
	t.Helper()
	home := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Paths.ImagesDir = filepath.Join(home, "images")
	return &runEnv{home: home, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}, cfg: cfg}
}

func (e *runEnv) run(opts ...Option) error {
	resolver := locate.NewResolverFor("linux", func(string) string { return "" }, func() (string, error) { return e.home, nil })
	base := []Option{
		WithConfig(e.cfg),
		WithResolver(resolver),
		WithOutput(e.stdout, e.stderr),
	}
	return Run(context.Background(), append(base, opts...)...)
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRun_CleanThenListRuns(t *testing.T) {
	e := newRunEnv(t)
	raw := testutil.HistoryDoc(t, map[string][]any{"/p": {[]any{testutil.DataURI("png", testutil.PNGBytes(64))}}})
	cfgPath := testutil.WriteFile(t, e.home, ".claude.json", raw)

	if err := e.run(WithMode(ModeClean)); err != nil {
		t.Fatalf("clean: %v", err)
	}
	if !strings.Contains(e.stdout.String(), "Items cleaned: 1") {
		t.Errorf("stdout = %s", e.stdout)
	}
	if !strings.Contains(e.stderr.String(), `"run_id"`) {
		t.Errorf("log lines lack run_id: %s", e.stderr)
	}
	cleaned, _ := os.ReadFile(cfgPath)
	if bytes.Contains(cleaned, []byte("data:image/")) {
		t.Error("config still holds the image")
	}
	if !bytes.Contains(cleaned, []byte("\n  ")) {
		t.Error("config not written with the default indent")
	}
	if _, err := os.Stat(filepath.Join(e.cfg.Paths.ImagesDir, "catalog.db")); err != nil {
		t.Errorf("catalog not created: %v", err)
	}

	e.stdout.Reset()
	if err := e.run(WithMode(ModeListRuns)); err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if !strings.Contains(e.stdout.String(), "clean") {
		t.Errorf("runs listing = %s", e.stdout)
	}

	e.stdout.Reset()
	if err := e.run(WithMode(ModeListBackups)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(e.stdout.String(), ".claude.json.backup.") {
		t.Errorf("backup listing = %s", e.stdout)
	}
}

func TestRun_ConfigNotFound(t *testing.T) {
	e := newRunEnv(t)
	err := e.run(WithMode(ModeClean))
	if !errors.Is(err, apperr.ErrConfigNotFound) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), filepath.Join(e.home, ".claude.json")) {
		t.Errorf("error lacks searched paths: %v", err)
	}
}

func TestRun_ListBackupsWithoutConfig(t *testing.T) {
	e := newRunEnv(t)
	testutil.WriteFile(t, e.home, ".claude.json.backup.20240101_120000", []byte(`{}`))

	if err := e.run(WithMode(ModeListBackups)); err != nil {
		t.Fatalf("list backups: %v", err)
	}
	if !strings.Contains(e.stdout.String(), ".claude.json.backup.20240101_120000") {
		t.Errorf("backup listing = %s", e.stdout)
	}
}

func TestRun_RecoverReportsCurrentNotFound(t *testing.T) {
	e := newRunEnv(t)
	bk := testutil.WriteFile(t, e.home, "old.json", []byte(`{}`))
	if err := e.run(WithMode(ModeRecover), WithRecoverFrom(bk)); !errors.Is(err, apperr.ErrCurrentNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_RecoverAutoWithoutBackups(t *testing.T) {
	e := newRunEnv(t)
	testutil.WriteFile(t, e.home, ".claude.json", []byte(`{}`))
	if err := e.run(WithMode(ModeRecover), WithRecoverFrom("auto")); !errors.Is(err, apperr.ErrNoBackups) {
		t.Errorf("err = %v", err)
	}
}

func TestRun_ExplicitConfigFileAndCatalogDisabled(t *testing.T) {
	e := newRunEnv(t)
	e.cfg.Catalog.Enabled = false
	other := testutil.WriteFile(t, e.home, filepath.Join("elsewhere", "c.json"), []byte(`{"projects":{}}`))

	if err := e.run(WithMode(ModeClean), WithConfigFile(other)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(e.stdout.String(), other) {
		t.Errorf("report does not name %s: %s", other, e.stdout)
	}
	if err := e.run(WithMode(ModeListRuns), WithConfigFile(other)); !errors.Is(err, apperr.ErrCatalogDisabled) {
		t.Errorf("list runs err = %v", err)
	}
}

func TestRun_InvalidMode(t *testing.T) {
	e := newRunEnv(t)
	testutil.WriteFile(t, e.home, ".claude.json", []byte(`{}`))
	if err := e.run(WithMode("bogus")); !errors.Is(err, apperr.ErrInvalidMode) {
		t.Errorf("err = %v", err)
	}
}
