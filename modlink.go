// Package modlink is a dynamic module loader and versioning runtime. It
// resolves compiled object containers on an ordered search path, installs
// them into a process-wide object store that keeps at most two live versions
// per module (current and old), and coordinates safe transitions between
// versions: reloads demote current code to old, and old code is discarded
// only by purging, which consults a process registry for execution contexts
// still running it.
//
// A Runtime owns one search path, one object store, and one loader. Hosts
// embed a Runtime, supply their execution engine and process registry, and
// drive loads through it:
//
//	rt, err := modlink.New(
//		modlink.WithLibRoots("/srv/code/lib"),
//		modlink.WithEngine(engine),
//		modlink.WithProcessRegistry(registry),
//	)
//	if err != nil {
//		return err
//	}
//	if _, err := rt.Load("payments"); err != nil {
//		return err
//	}
package modlink

import (
	"os"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/codepath"
	"github.com/modlink-io/modlink/loader"
	"github.com/modlink-io/modlink/store"
)

// EnvLibs is the environment variable naming additional library roots,
// separated by the platform path list separator. Each root is expanded to
// its Name[-Version]/obj directories and appended to the search path when
// the Runtime is constructed.
const EnvLibs = "MODLINK_LIBS"

// Runtime ties together the search path, object store, and loader. Create
// one with New; the zero value is not usable. Runtimes are independent, so
// tests can construct a fresh one per case.
type Runtime struct {
	path   *codepath.Path
	store  *store.Store
	loader *loader.Loader
}

// New constructs a Runtime. The search path is seeded from the EnvLibs
// environment variable (unless disabled), then from any configured library
// roots and path directories, in that order.
func New(opts ...Option) (*Runtime, error) {
	cfg := collectOptions(opts...)

	path := codepath.New()
	if !cfg.skipEnv {
		for _, root := range codepath.SplitEnvPath(os.Getenv(EnvLibs)) {
			path.AppendAll(codepath.LibDirs(root))
		}
	}
	for _, root := range cfg.libRoots {
		path.AppendAll(codepath.LibDirs(root))
	}
	path.AppendAll(cfg.pathDirs)

	st := store.New()
	var loaderOpts []loader.Option
	if cfg.engine != nil {
		loaderOpts = append(loaderOpts, loader.WithEngine(cfg.engine))
	}
	if cfg.registry != nil {
		loaderOpts = append(loaderOpts, loader.WithRegistry(cfg.registry))
	}
	if cfg.embedded {
		loaderOpts = append(loaderOpts, loader.WithEmbedded())
	}
	loaderOpts = append(loaderOpts, loader.WithLogger(cfg.logger))

	ld := loader.New(path, st, loaderOpts...)
	for _, dir := range cfg.stickyDirs {
		ld.Stick(dir)
	}
	return &Runtime{path: path, store: st, loader: ld}, nil
}

// Path returns the runtime's search path.
func (r *Runtime) Path() *codepath.Path { return r.path }

// Store returns the runtime's object store.
func (r *Runtime) Store() *store.Store { return r.store }

// Loader returns the runtime's loader.
func (r *Runtime) Loader() *loader.Loader { return r.loader }

// Load resolves and installs the named module's current code.
func (r *Runtime) Load(name string) (*codeobj.CodeObject, error) {
	return r.loader.LoadByName(name)
}

// LoadFile installs the object container at file for name, bypassing path
// resolution.
func (r *Runtime) LoadFile(name, file string) (*codeobj.CodeObject, error) {
	return r.loader.LoadFromPath(name, file)
}

// LoadIfAbsent installs name only when it is not already loaded.
func (r *Runtime) LoadIfAbsent(name string) (*codeobj.CodeObject, error) {
	return r.loader.LoadIfAbsent(name)
}

// LoadBinary installs a pre-fetched object container under the given origin
// label.
func (r *Runtime) LoadBinary(name, origin string, data []byte) (*codeobj.CodeObject, error) {
	return r.loader.LoadBinary(name, origin, data)
}

// AtomicLoad installs a batch of modules with all-or-nothing visibility.
func (r *Runtime) AtomicLoad(items []loader.Item) error {
	return r.loader.AtomicLoad(items)
}

// PrepareLoading validates a batch without installing it, returning a
// single-use token for FinishLoading.
func (r *Runtime) PrepareLoading(items []loader.Item) (*loader.PreparedBatch, error) {
	return r.loader.PrepareLoading(items)
}

// FinishLoading atomically installs a prepared batch, consuming the token.
func (r *Runtime) FinishLoading(batch *loader.PreparedBatch) error {
	return r.loader.FinishLoading(batch)
}

// EnsureLoaded loads every named module that is not already loaded.
func (r *Runtime) EnsureLoaded(names []string) error {
	return r.loader.EnsureLoaded(names)
}

// Purge discards old code for name, forcing out lingering execution
// contexts. Reports whether force-termination was needed.
func (r *Runtime) Purge(name string) (bool, error) {
	return r.loader.Purge(name)
}

// SoftPurge discards old code only if no execution context still runs it.
func (r *Runtime) SoftPurge(name string) bool {
	return r.loader.SoftPurge(name)
}

// DeleteCurrent retires the module's current code without a replacement.
func (r *Runtime) DeleteCurrent(name string) error {
	return r.loader.DeleteCurrent(name)
}

// AllLoaded lists every loaded module with its origin.
func (r *Runtime) AllLoaded() []loader.Module {
	return r.loader.AllLoaded()
}

// AllAvailable lists every module that is loaded or resolvable.
func (r *Runtime) AllAvailable() []loader.Module {
	return r.loader.AllAvailable()
}

// IsLoaded reports whether name has current code.
func (r *Runtime) IsLoaded(name string) bool {
	return r.loader.IsLoaded(name)
}

// Which reports where the named module's code lives.
func (r *Runtime) Which(name string) (string, error) {
	return r.loader.Which(name)
}

// ModuleStatus classifies each named module against its on-disk object file.
func (r *Runtime) ModuleStatus(names []string) map[string]loader.Status {
	return r.loader.ModuleStatus(names)
}

// ModifiedModules lists loaded modules whose on-disk object files changed.
func (r *Runtime) ModifiedModules() []string {
	return r.loader.ModifiedModules()
}

// Stick marks dir sticky so modules resident in it reject reloads.
func (r *Runtime) Stick(dir string) { r.loader.Stick(dir) }

// Unstick removes the sticky mark from dir.
func (r *Runtime) Unstick(dir string) { r.loader.Unstick(dir) }

// IsSticky reports whether the named module resides in a sticky directory.
func (r *Runtime) IsSticky(name string) bool { return r.loader.IsSticky(name) }

// Clashes reports modules whose object files appear in more than one search
// path directory.
func (r *Runtime) Clashes() []codepath.Clash {
	return r.path.Clashes()
}
