package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/imgclean/internal"
	"github.com/starford/imgclean/internal/apperr"
	"github.com/starford/imgclean/internal/cleaner"
	pkgconfig "github.com/starford/imgclean/pkg/config"
)

const recoverFlag = "recover-from-backup"

// modeFlags maps each mode flag to the mode it selects. Without any of them
// the config is cleaned.
var modeFlags = []struct {
	name string
	mode internal.Mode
}{
	{recoverFlag, internal.ModeRecover},
	{"list-backups", internal.ModeListBackups},
	{"list-runs", internal.ModeListRuns},
	{"watch", internal.ModeWatch},
	{"serve", internal.ModeServe},
}

func run(ctx context.Context, cmd *cli.Command) error {
	mode, err := selectMode(func(name string) bool {
		if name == recoverFlag {
			return cmd.IsSet(name)
		}
		return cmd.Bool(name)
	})
	if err != nil {
		return err
	}

	cfg, err := loadSettings(cmd.String("settings"))
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithMode(mode),
		internal.WithRecoverFrom(cmd.String(recoverFlag)),
		internal.WithConfigFile(cmd.String("config-file")),
		internal.WithVerbose(cmd.Bool("verbose")),
		internal.WithRunLimit(int(cmd.Int("limit"))),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func selectMode(active func(name string) bool) (internal.Mode, error) {
	mode := internal.ModeClean
	var chosen []string
	for _, f := range modeFlags {
		if active(f.name) {
			chosen = append(chosen, "--"+f.name)
			mode = f.mode
		}
	}
	if len(chosen) > 1 {
		return "", fmt.Errorf("%w: %s cannot be combined", apperr.ErrInvalidMode, strings.Join(chosen, " and "))
	}
	return mode, nil
}

// loadSettings reads the named settings file, or the per-user default when
// it exists. Built-in defaults apply otherwise.
func loadSettings(path string) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if path != "" {
		if err := pkgconfig.Load(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if _, err := pkgconfig.LoadOptional(defaultSettingsPath(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultSettingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "imgclean", "config.yaml")
}

// normalizeArgs turns a bare --recover-from-backup into
// --recover-from-backup auto so the string flag always has a value.
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for i, a := range args {
		out = append(out, a)
		if a == "--" {
			return append(out, args[i+1:]...)
		}
		if a != "--"+recoverFlag && a != "-"+recoverFlag {
			continue
		}
		if i+1 == len(args) || strings.HasPrefix(args[i+1], "-") {
			out = append(out, cleaner.AutoBackup)
		}
	}
	return out
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:   "imgclean",
		Usage:  "Move pasted images out of the Claude config into files and recover lost history from backups",
		Action: run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  recoverFlag,
				Usage: "Merge new history from the current config into `FILE` (\"auto\" picks the largest backup)",
			},
			&cli.BoolFlag{
				Name:  "list-backups",
				Usage: "List available backup files",
			},
			&cli.BoolFlag{
				Name:  "list-runs",
				Usage: "List recorded runs from the catalog",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Clean again whenever the config file changes",
			},
			&cli.BoolFlag{
				Name:  "serve",
				Usage: "Serve extracted images and the run catalog over HTTP",
			},
			&cli.StringFlag{
				Name:  "config-file",
				Usage: "Path to the Claude config `FILE` instead of the discovered one",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:        "settings",
				Usage:       "Path to the imgclean settings `FILE`",
				DefaultText: "<user config dir>/imgclean/config.yaml",
				Sources:     cli.EnvVars("IMGCLEAN_SETTINGS"),
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of runs shown by --list-runs",
				Value: 20,
			},
		},
	}
}

func main() {
	if err := newCommand().Run(context.Background(), normalizeArgs(os.Args)); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
