package internal

import (
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/imgclean/internal/cleaner"
	"github.com/starford/imgclean/internal/watch"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the tool settings.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Paths   PathsConfig       `yaml:"paths"`
	Output  OutputConfig      `yaml:"output"`
	Backup  BackupConfig      `yaml:"backup"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Watch   WatchConfig       `yaml:"watch"`
	Serve   ServeConfig       `yaml:"serve"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.Output, &c.Backup, &c.Watch, &c.Serve} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds logging configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	)
}

// PathsConfig overrides the discovered locations. Empty values mean
// "discover".
type PathsConfig struct {
	ClaudeConfig string `yaml:"claude_config"`
	ImagesDir    string `yaml:"images_dir"`
}

// OutputConfig controls how the rewritten config is serialized.
type OutputConfig struct {
	// Indent is repeated per nesting level; empty writes compact JSON.
	Indent string `yaml:"indent"`
}

var indentPattern = regexp.MustCompile(`^[ \t]{0,8}$`)

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Indent, validation.Match(indentPattern).Error("must be at most 8 spaces or tabs")),
	)
}

// BackupConfig holds backup auto-detection settings.
type BackupConfig struct {
	// AutoMinSize is the size in bytes a backup must exceed to be
	// auto-detected for recovery.
	AutoMinSize int64 `yaml:"auto_min_size"`
}

// Validate validates the backup configuration.
func (c *BackupConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.AutoMinSize, validation.Min(int64(0))),
	)
}

// CatalogConfig holds the run catalog settings. An empty Path puts the
// database in the images directory.
type CatalogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(100*time.Millisecond)),
	)
}

// ServeConfig holds the HTTP browser settings.
type ServeConfig struct {
	Address string `yaml:"address"`
}

// Validate validates the serve configuration.
func (c *ServeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Address, validation.Required, validation.By(hostPort)),
	)
}

func hostPort(v any) error {
	s, _ := v.(string)
	if _, _, err := net.SplitHostPort(s); err != nil {
		return fmt.Errorf("must be host:port")
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
		},
		Output: OutputConfig{
			Indent: "  ",
		},
		Backup: BackupConfig{
			AutoMinSize: cleaner.DefaultAutoMinSize,
		},
		Catalog: CatalogConfig{
			Enabled: true,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
		Serve: ServeConfig{
			Address: "127.0.0.1:8765",
		},
	}
}
