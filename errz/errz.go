// Package errz defines the error taxonomy for the loader runtime. Every
// operation family has its own kind enum, and all errors are returned as
// values that support errors.Is/errors.As matching.
package errz

import (
	"errors"
	"fmt"
)

// Kind categorizes a loader error.
type Kind int

const (
	// Path resolver kinds.

	// NotADirectory indicates a search path insert of a missing directory.
	NotADirectory Kind = iota
	// BadName indicates a malformed module or directory name.
	BadName
	// NotFound indicates no matching search path entry.
	NotFound
	// BadDirectory indicates a replacement directory that is missing or malformed.
	BadDirectory
	// BadArgument indicates an invalid argument pair (name, directory).
	BadArgument

	// Load kinds.

	// BadFile indicates a corrupt object file or a module name tag mismatch.
	BadFile
	// NoFile indicates the object file could not be found on the search path.
	NoFile
	// NotPurged indicates the module's old-code slot is still occupied.
	NotPurged
	// OnLoadFailure indicates the execution engine rejected the install.
	OnLoadFailure
	// Sticky indicates a write to a module resident in a sticky directory.
	Sticky
	// Duplicated indicates the same module appeared twice in one batch.
	Duplicated
	// OnLoadNotAllowed indicates a module with a pending on-load hook was
	// submitted to a batch operation.
	OnLoadNotAllowed
	// PendingOnLoad indicates a single-module load hit a module whose
	// on-load hook is still in flight.
	PendingOnLoad
	// EmbeddedMode indicates a search-based load was attempted in embedded mode.
	EmbeddedMode
	// Consumed indicates reuse of an already-finished prepared batch token.
	Consumed

	// Introspection kinds.

	// NonExisting indicates the module is neither loaded nor resolvable.
	NonExisting
	// Missing is reserved for execution engines reporting an object that was
	// expected at install time but is not present; the loader itself reports
	// NoFile for files absent on the search path.
	Missing
)

// String returns the snake_case tag for the kind, matching the wire-level
// error vocabulary used across the loader surface.
func (k Kind) String() string {
	switch k {
	case NotADirectory:
		return "not_a_directory"
	case BadName:
		return "bad_name"
	case NotFound:
		return "not_found"
	case BadDirectory:
		return "bad_directory"
	case BadArgument:
		return "bad_argument"
	case BadFile:
		return "bad_file"
	case NoFile:
		return "no_file"
	case NotPurged:
		return "not_purged"
	case OnLoadFailure:
		return "on_load_failure"
	case Sticky:
		return "sticky_directory"
	case Duplicated:
		return "duplicated"
	case OnLoadNotAllowed:
		return "on_load_not_allowed"
	case PendingOnLoad:
		return "pending_on_load"
	case EmbeddedMode:
		return "embedded"
	case Consumed:
		return "consumed"
	case NonExisting:
		return "non_existing"
	case Missing:
		return "missing"
	default:
		return "error"
	}
}

// PathError reports a search path operation failure. Name and Dir carry the
// offending values when the kind calls for them (BadArgument carries both).
type PathError struct {
	Kind  Kind
	Name  string
	Dir   string
	Cause error
}

func (e *PathError) Error() string {
	switch {
	case e.Name != "" && e.Dir != "":
		return fmt.Sprintf("%s: %q, %q", e.Kind, e.Name, e.Dir)
	case e.Dir != "":
		return fmt.Sprintf("%s: %q", e.Kind, e.Dir)
	case e.Name != "":
		return fmt.Sprintf("%s: %q", e.Kind, e.Name)
	default:
		return e.Kind.String()
	}
}

func (e *PathError) Unwrap() error { return e.Cause }

// Is matches against another *PathError by kind, so callers can test with
// errors.Is(err, &PathError{Kind: NotFound}).
func (e *PathError) Is(target error) bool {
	t, ok := target.(*PathError)
	return ok && t.Kind == e.Kind
}

// ModuleError reports a loader operation failure for a single module. Batch
// operations aggregate one ModuleError per failing module.
type ModuleError struct {
	Module string
	Kind   Kind
	Cause  error
}

func (e *ModuleError) Error() string {
	switch {
	case e.Module == "" && e.Cause != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
	case e.Module == "":
		return e.Kind.String()
	case e.Cause != nil:
		return fmt.Sprintf("%s: module %q: %s", e.Kind, e.Module, e.Cause)
	default:
		return fmt.Sprintf("%s: module %q", e.Kind, e.Module)
	}
}

func (e *ModuleError) Unwrap() error { return e.Cause }

// Is matches against another *ModuleError by kind, and by module name when
// the target names one.
func (e *ModuleError) Is(target error) bool {
	t, ok := target.(*ModuleError)
	if !ok {
		return false
	}
	if t.Module != "" && t.Module != e.Module {
		return false
	}
	return t.Kind == e.Kind
}

// NewModuleError builds a ModuleError for the given module and kind.
func NewModuleError(module string, kind Kind) *ModuleError {
	return &ModuleError{Module: module, Kind: kind}
}

// NewModuleErrorCause builds a ModuleError wrapping an underlying cause.
func NewModuleErrorCause(module string, kind Kind, cause error) *ModuleError {
	return &ModuleError{Module: module, Kind: kind, Cause: cause}
}

// KindOf extracts the loader error kind from err, unwrapping as needed.
// The second return is false when err carries no kind.
func KindOf(err error) (Kind, bool) {
	var me *ModuleError
	if errors.As(err, &me) {
		return me.Kind, true
	}
	var pe *PathError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
