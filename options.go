package modlink

import (
	"github.com/rs/zerolog"

	"github.com/modlink-io/modlink/loader"
	"github.com/modlink-io/modlink/process"
)

// Option describes a function used to configure a Runtime.
type Option func(*config)

type config struct {
	pathDirs   []string
	libRoots   []string
	skipEnv    bool
	embedded   bool
	stickyDirs []string
	engine     loader.Engine
	registry   process.Registry
	logger     zerolog.Logger
}

func collectOptions(opts ...Option) *config {
	cfg := &config{logger: zerolog.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithPathDirs appends directories to the search path at construction,
// after any environment-supplied library roots. Invalid directories are
// skipped.
func WithPathDirs(dirs ...string) Option {
	return func(cfg *config) {
		cfg.pathDirs = append(cfg.pathDirs, dirs...)
	}
}

// WithLibRoots supplies additional library roots, each expanded to its
// Name[-Version]/obj directories like the environment variable would be.
func WithLibRoots(roots ...string) Option {
	return func(cfg *config) {
		cfg.libRoots = append(cfg.libRoots, roots...)
	}
}

// WithoutEnv disables reading the library-root environment variable, so
// only explicitly supplied directories seed the search path.
func WithoutEnv() Option {
	return func(cfg *config) {
		cfg.skipEnv = true
	}
}

// WithEmbedded puts the runtime in embedded mode: demand loads refuse to
// search the filesystem.
func WithEmbedded() Option {
	return func(cfg *config) {
		cfg.embedded = true
	}
}

// WithStickyDirs marks directories sticky at construction.
func WithStickyDirs(dirs ...string) Option {
	return func(cfg *config) {
		cfg.stickyDirs = append(cfg.stickyDirs, dirs...)
	}
}

// WithEngine supplies the execution engine installed code is handed to.
func WithEngine(engine loader.Engine) Option {
	return func(cfg *config) {
		cfg.engine = engine
	}
}

// WithProcessRegistry supplies the registry that tracks execution contexts,
// enabling purges to detect and terminate lingering code users.
func WithProcessRegistry(registry process.Registry) Option {
	return func(cfg *config) {
		cfg.registry = registry
	}
}

// WithLogger supplies the logger for load and purge events.
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}
