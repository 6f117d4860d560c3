// Package store owns the per-module registry of live code objects. Each
// module name has at most one current and one old code object; every
// transition between the two is linearized by a single store-wide lock, so
// demote/install/purge sequences and multi-module batch installs are atomic
// with respect to all observers.
package store

import (
	"sort"
	"sync"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/errz"
)

type slot struct {
	current *codeobj.CodeObject
	old     *codeobj.CodeObject
}

// Store is the process-wide object store. The zero value is not usable; call
// New. Tests inject a fresh Store per case rather than sharing a global.
type Store struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

// New creates an empty object store.
func New() *Store {
	return &Store{slots: make(map[string]*slot)}
}

// Entry is a read-only snapshot of one module slot.
type Entry struct {
	Name    string
	Current *codeobj.CodeObject
	Old     *codeobj.CodeObject
}

// Get returns a snapshot of the slot for name. The second return is false
// when the module has never been loaded (or was fully unloaded).
func (s *Store) Get(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sl, ok := s.slots[name]
	if !ok {
		return Entry{}, false
	}
	return Entry{Name: name, Current: sl.current, Old: sl.old}, true
}

// Current returns the current code object for name, or nil.
func (s *Store) Current(name string) *codeobj.CodeObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.slots[name]; ok {
		return sl.current
	}
	return nil
}

// Old returns the old code object for name, or nil.
func (s *Store) Old(name string) *codeobj.CodeObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sl, ok := s.slots[name]; ok {
		return sl.old
	}
	return nil
}

// HasOld reports whether the old slot for name is occupied.
func (s *Store) HasOld(name string) bool {
	return s.Old(name) != nil
}

// IsLoaded reports whether name has current code installed.
func (s *Store) IsLoaded(name string) bool {
	return s.Current(name) != nil
}

// SetCurrent installs obj as the current code for its module name, demoting
// any existing current code to old. Fails with NotPurged when the old slot
// is already occupied.
func (s *Store) SetCurrent(obj *codeobj.CodeObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCurrentLocked(obj)
}

func (s *Store) setCurrentLocked(obj *codeobj.CodeObject) error {
	name := obj.Name()
	sl, ok := s.slots[name]
	if !ok {
		sl = &slot{}
		s.slots[name] = sl
	}
	if sl.current != nil && sl.old != nil {
		return errz.NewModuleError(name, errz.NotPurged)
	}
	if sl.current != nil {
		sl.old = sl.current
	}
	sl.current = obj
	return nil
}

// DemoteCurrent moves the current code for name into the old slot, leaving
// no current code installed. Fails with NotPurged if old is occupied.
func (s *Store) DemoteCurrent(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[name]
	if !ok || sl.current == nil {
		return errz.NewModuleError(name, errz.NonExisting)
	}
	if sl.old != nil {
		return errz.NewModuleError(name, errz.NotPurged)
	}
	sl.old = sl.current
	sl.current = nil
	return nil
}

// DropOld discards the old code object for name, returning it. Returns nil
// when no old code exists. An empty slot is removed entirely, which makes
// the module "not loaded" again.
func (s *Store) DropOld(name string) *codeobj.CodeObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[name]
	if !ok || sl.old == nil {
		return nil
	}
	old := sl.old
	sl.old = nil
	if sl.current == nil {
		delete(s.slots, name)
	}
	return old
}

// Names returns the sorted names of all modules with current code installed.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.slots))
	for name, sl := range s.slots {
		if sl.current != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Snapshot returns entries for every slot, sorted by module name.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]Entry, 0, len(s.slots))
	for name, sl := range s.slots {
		entries = append(entries, Entry{Name: name, Current: sl.current, Old: sl.old})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// InstallAll installs every object, or none. Each object's slot is validated
// under the lock first; a NotPurged conflict or a module name appearing more
// than once in the batch aborts the whole batch with one ModuleError per
// offending module and the store unchanged. No reader can observe
// some-but-not-all objects of the batch.
func (s *Store) InstallAll(objs []*codeobj.CodeObject) []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	seen := make(map[string]bool, len(objs))
	for _, obj := range objs {
		name := obj.Name()
		if seen[name] {
			errs = append(errs, errz.NewModuleError(name, errz.Duplicated))
			continue
		}
		seen[name] = true
		if sl, ok := s.slots[name]; ok && sl.current != nil && sl.old != nil {
			errs = append(errs, errz.NewModuleError(name, errz.NotPurged))
		}
	}
	if len(errs) > 0 {
		return errs
	}
	for _, obj := range objs {
		// Cannot fail: conflicts were ruled out above and the lock is held.
		if err := s.setCurrentLocked(obj); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
