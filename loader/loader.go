// Package loader implements the module load pipeline: resolving object
// containers on the search path, validating them, installing them into the
// object store, and retiring previous versions. It also hosts the purge
// machinery and the read-only introspection surface.
//
// Every load passes through the same states: requested, path-resolved,
// validated, then installed or rejected. Sticky-directory and not-purged
// checks run before any file read where possible, so conflicting loads fail
// fast.
package loader

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/codepath"
	"github.com/modlink-io/modlink/errz"
	"github.com/modlink-io/modlink/process"
	"github.com/modlink-io/modlink/store"
)

// Engine is the execution engine a validated code object is handed to. The
// loader treats installation as opaque: whatever the engine does, a nil
// return makes the object the callable implementation of its module name.
type Engine interface {
	// Install makes obj the callable implementation for its module name.
	Install(obj *codeobj.CodeObject) error

	// PendingOnLoad reports whether an on-load hook is still in flight for
	// the named module. Such modules are rejected from batch operations.
	PendingOnLoad(name string) bool
}

// NopEngine accepts every install and has no on-load hooks.
type NopEngine struct{}

// Install implements Engine.
func (NopEngine) Install(*codeobj.CodeObject) error { return nil }

// PendingOnLoad implements Engine.
func (NopEngine) PendingOnLoad(string) bool { return false }

// Loader coordinates the path resolver, object store, execution engine, and
// process registry. All mutating operations are serialized by a single
// mutex, which makes demote/install/purge sequences linearizable per module
// and batch installs all-or-nothing.
type Loader struct {
	path     *codepath.Path
	store    *store.Store
	registry process.Registry
	engine   Engine
	embedded bool
	log      zerolog.Logger

	// mu serializes all mutating load/purge sequences.
	mu sync.Mutex

	stickyMu sync.RWMutex
	sticky   map[string]struct{}
}

// Option configures a Loader.
type Option func(*Loader)

// WithEngine supplies the execution engine that installs code objects.
func WithEngine(engine Engine) Option {
	return func(l *Loader) {
		if engine != nil {
			l.engine = engine
		}
	}
}

// WithRegistry supplies the process registry consulted during purges.
func WithRegistry(registry process.Registry) Option {
	return func(l *Loader) {
		if registry != nil {
			l.registry = registry
		}
	}
}

// WithLogger supplies the logger used for load and purge events.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// WithEmbedded puts the loader in embedded mode: LoadIfAbsent refuses to
// search the filesystem, so only explicit loads can bring in new code.
func WithEmbedded() Option {
	return func(l *Loader) {
		l.embedded = true
	}
}

// New creates a Loader over the given search path and object store.
func New(path *codepath.Path, st *store.Store, opts ...Option) *Loader {
	l := &Loader{
		path:     path,
		store:    st,
		registry: process.NopRegistry{},
		engine:   NopEngine{},
		log:      zerolog.Nop(),
		sticky:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Path returns the loader's search path.
func (l *Loader) Path() *codepath.Path { return l.path }

// Store returns the loader's object store.
func (l *Loader) Store() *store.Store { return l.store }

// Embedded reports whether the loader runs in embedded mode.
func (l *Loader) Embedded() bool { return l.embedded }

// LoadByName resolves name on the search path, reads and validates its
// object container, and installs it as the module's current code. Any
// previous current code is demoted to old. Fails with NotPurged while the
// old slot is occupied, with Sticky when the module lives in a sticky
// directory, and with PendingOnLoad while the engine still has an on-load
// hook in flight for the module.
func (l *Loader) LoadByName(name string) (*codeobj.CodeObject, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadByNameLocked(name)
}

func (l *Loader) loadByNameLocked(name string) (*codeobj.CodeObject, error) {
	if err := l.precheck(name); err != nil {
		return nil, err
	}
	dir, err := l.path.Resolve(name)
	if err != nil {
		return nil, errz.NewModuleErrorCause(name, errz.NoFile, err)
	}
	if l.isStickyDir(dir) {
		return nil, errz.NewModuleError(name, errz.Sticky)
	}
	return l.installFromFile(name, filepath.Join(dir, name+codeobj.Ext))
}

// LoadFromPath reads the object container at file and installs it for name,
// bypassing path resolution. The file's embedded module tag must match name.
func (l *Loader) LoadFromPath(name, file string) (*codeobj.CodeObject, error) {
	if name == "" || file == "" {
		return nil, errz.NewModuleError(name, errz.BadArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.precheck(name); err != nil {
		return nil, err
	}
	if l.isStickyDir(filepath.Dir(file)) {
		return nil, errz.NewModuleError(name, errz.Sticky)
	}
	return l.installFromFile(name, file)
}

// LoadIfAbsent installs name only when it has no current code. Already
// loaded modules are returned untouched. In embedded mode the filesystem is
// never searched and the call fails with EmbeddedMode instead.
func (l *Loader) LoadIfAbsent(name string) (*codeobj.CodeObject, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if obj := l.store.Current(name); obj != nil {
		return obj, nil
	}
	if l.embedded {
		return nil, errz.NewModuleError(name, errz.EmbeddedMode)
	}
	return l.loadByNameLocked(name)
}

// LoadBinary installs a pre-fetched object container for name. originLabel
// is recorded as the object's origin without being read, so remote sources
// can label code with URLs or other non-filesystem provenance.
func (l *Loader) LoadBinary(name, originLabel string, data []byte) (*codeobj.CodeObject, error) {
	if name == "" {
		return nil, errz.NewModuleError(name, errz.BadArgument)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.precheck(name); err != nil {
		return nil, err
	}
	obj, err := decodeObject(name, originLabel, data)
	if err != nil {
		return nil, err
	}
	return l.install(obj)
}

// EnsureLoaded loads every name that has no current code, leaving already
// loaded modules untouched. Per-module failures are aggregated; modules that
// load successfully stay loaded even when others fail.
func (l *Loader) EnsureLoaded(names []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var result *multierror.Error
	for _, name := range names {
		if l.store.IsLoaded(name) {
			continue
		}
		if _, err := l.loadByNameLocked(name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// precheck runs the fail-fast gates that need no filesystem access: the
// in-flight on-load hook, the not-purged conflict, and the sticky check
// against the currently loaded origin directory.
func (l *Loader) precheck(name string) error {
	if l.engine.PendingOnLoad(name) {
		return errz.NewModuleError(name, errz.PendingOnLoad)
	}
	if l.store.HasOld(name) {
		return errz.NewModuleError(name, errz.NotPurged)
	}
	if cur := l.store.Current(name); cur != nil {
		if l.isStickyDir(filepath.Dir(cur.Origin())) {
			return errz.NewModuleError(name, errz.Sticky)
		}
	}
	return nil
}

func (l *Loader) installFromFile(name, file string) (*codeobj.CodeObject, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errz.NewModuleErrorCause(name, errz.NoFile, err)
		}
		return nil, errz.NewModuleErrorCause(name, errz.BadFile, err)
	}
	obj, err := decodeObject(name, file, data)
	if err != nil {
		return nil, err
	}
	return l.install(obj)
}

// decodeObject parses an object container and checks its embedded module
// tag against the requested name.
func decodeObject(name, origin string, data []byte) (*codeobj.CodeObject, error) {
	tag, payload, err := codeobj.Unmarshal(data)
	if err != nil {
		return nil, errz.NewModuleErrorCause(name, errz.BadFile, err)
	}
	if tag != name {
		return nil, errz.NewModuleErrorCause(name, errz.BadFile,
			&tagMismatchError{want: name, got: tag})
	}
	obj, err := codeobj.New(codeobj.Params{Name: tag, Binary: payload, Origin: origin})
	if err != nil {
		return nil, errz.NewModuleErrorCause(name, errz.BadFile, err)
	}
	return obj, nil
}

type tagMismatchError struct {
	want, got string
}

func (e *tagMismatchError) Error() string {
	return "module tag " + e.got + " does not match requested name " + e.want
}

// install hands the object to the execution engine, then commits it to the
// store. The engine runs first so an install-time failure leaves the store
// unchanged. Caller holds l.mu.
func (l *Loader) install(obj *codeobj.CodeObject) (*codeobj.CodeObject, error) {
	name := obj.Name()
	if err := l.engine.Install(obj); err != nil {
		return nil, errz.NewModuleErrorCause(name, errz.OnLoadFailure, err)
	}
	if err := l.store.SetCurrent(obj); err != nil {
		return nil, err
	}
	l.log.Debug().
		Str("module", name).
		Str("origin", obj.Origin()).
		Int("bytes", obj.Size()).
		Msg("module installed")
	return obj, nil
}

// Stick marks dir as sticky: modules resident in it reject reloads.
func (l *Loader) Stick(dir string) {
	l.stickyMu.Lock()
	defer l.stickyMu.Unlock()
	l.sticky[filepath.Clean(dir)] = struct{}{}
}

// Unstick removes the sticky mark from dir.
func (l *Loader) Unstick(dir string) {
	l.stickyMu.Lock()
	defer l.stickyMu.Unlock()
	delete(l.sticky, filepath.Clean(dir))
}

// IsSticky reports whether the named module currently resides in a sticky
// directory. A module that is not loaded is never sticky.
func (l *Loader) IsSticky(name string) bool {
	cur := l.store.Current(name)
	if cur == nil {
		return false
	}
	return l.isStickyDir(filepath.Dir(cur.Origin()))
}

func (l *Loader) isStickyDir(dir string) bool {
	l.stickyMu.RLock()
	defer l.stickyMu.RUnlock()
	_, ok := l.sticky[filepath.Clean(dir)]
	return ok
}
