package internal

import (
	"io"

	"github.com/starford/imgclean/internal/locate"
)

// Mode selects what Run does.
type Mode string

// Run modes.
const (
	ModeClean       Mode = "clean"
	ModeRecover     Mode = "recover"
	ModeListBackups Mode = "list-backups"
	ModeListRuns    Mode = "list-runs"
	ModeWatch       Mode = "watch"
	ModeServe       Mode = "serve"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config      *Config
	mode        Mode
	recoverFrom string
	configFile  string
	verbose     bool
	runLimit    int
	stdout      io.Writer
	stderr      io.Writer
	resolver    *locate.Resolver
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithMode sets the run mode. The default is ModeClean.
func WithMode(m Mode) Option {
	return func(a *application) {
		a.mode = m
	}
}

// WithRecoverFrom names the backup to recover from; "auto" or empty picks
// one by size.
func WithRecoverFrom(path string) Option {
	return func(a *application) {
		a.recoverFrom = path
	}
}

// WithConfigFile overrides the discovered config file.
func WithConfigFile(path string) Option {
	return func(a *application) {
		a.configFile = path
	}
}

// WithVerbose enables debug logging.
func WithVerbose(v bool) Option {
	return func(a *application) {
		a.verbose = v
	}
}

// WithRunLimit caps the number of runs listed.
func WithRunLimit(n int) Option {
	return func(a *application) {
		a.runLimit = n
	}
}

// WithOutput redirects the report (stdout) and the log (stderr).
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *application) {
		a.stdout = stdout
		a.stderr = stderr
	}
}

// WithResolver replaces the platform path resolver.
func WithResolver(r *locate.Resolver) Option {
	return func(a *application) {
		a.resolver = r
	}
}
