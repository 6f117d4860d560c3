package loader

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/errz"
)

// Module describes one module for introspection queries.
type Module struct {
	Name   string
	Origin string
	Loaded bool
}

// AllLoaded returns every module with current code installed, sorted by
// name, with the origin each was loaded from.
func (l *Loader) AllLoaded() []Module {
	var out []Module
	for _, entry := range l.store.Snapshot() {
		if entry.Current != nil {
			out = append(out, Module{
				Name:   entry.Name,
				Origin: entry.Current.Origin(),
				Loaded: true,
			})
		}
	}
	return out
}

// AllAvailable returns every module that is loaded or resolvable on the
// search path, sorted by name. For unloaded modules the origin is the object
// file the path would resolve to.
func (l *Loader) AllAvailable() []Module {
	byName := make(map[string]Module)
	for _, m := range l.AllLoaded() {
		byName[m.Name] = m
	}
	for _, dir := range l.path.Dirs() {
		for _, name := range listObjectModules(dir) {
			if _, ok := byName[name]; ok {
				continue
			}
			byName[name] = Module{
				Name:   name,
				Origin: filepath.Join(dir, name+codeobj.Ext),
			}
		}
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Module, len(names))
	for i, name := range names {
		out[i] = byName[name]
	}
	return out
}

// IsLoaded reports whether name has current code installed.
func (l *Loader) IsLoaded(name string) bool {
	return l.store.IsLoaded(name)
}

// Which returns where the named module's code lives: the origin it was
// loaded from, or the object file it would resolve to if loaded now. Fails
// with NonExisting when the module is neither loaded nor resolvable.
func (l *Loader) Which(name string) (string, error) {
	if cur := l.store.Current(name); cur != nil {
		return cur.Origin(), nil
	}
	dir, err := l.path.Resolve(name)
	if err != nil {
		return "", errz.NewModuleErrorCause(name, errz.NonExisting, err)
	}
	return filepath.Join(dir, name+codeobj.Ext), nil
}

// Status classifies a module's relation to its on-disk object file.
type Status int

const (
	// StatusNotLoaded means no current code is installed for the module.
	StatusNotLoaded Status = iota
	// StatusLoaded means the loaded code matches the on-disk object file.
	StatusLoaded
	// StatusModified means the on-disk object file has changed since load.
	StatusModified
	// StatusRemoved means the loaded module's object file is gone from disk.
	StatusRemoved
)

func (s Status) String() string {
	switch s {
	case StatusNotLoaded:
		return "not_loaded"
	case StatusLoaded:
		return "loaded"
	case StatusModified:
		return "modified"
	case StatusRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ModuleStatus compares each loaded module's checksum against the object
// file currently on disk. The origin file is preferred; when it is gone the
// search path is consulted before declaring the module removed.
func (l *Loader) ModuleStatus(names []string) map[string]Status {
	out := make(map[string]Status, len(names))
	for _, name := range names {
		out[name] = l.statusOf(name)
	}
	return out
}

func (l *Loader) statusOf(name string) Status {
	cur := l.store.Current(name)
	if cur == nil {
		return StatusNotLoaded
	}
	file := cur.Origin()
	sum, err := codeobj.FileChecksum(file)
	if err != nil {
		dir, rerr := l.path.Resolve(name)
		if rerr != nil {
			return StatusRemoved
		}
		file = filepath.Join(dir, name+codeobj.Ext)
		if sum, err = codeobj.FileChecksum(file); err != nil {
			return StatusRemoved
		}
	}
	if sum != cur.Checksum() {
		return StatusModified
	}
	return StatusLoaded
}

// ModifiedModules returns the loaded modules whose on-disk object files no
// longer match the loaded code, sorted by name.
func (l *Loader) ModifiedModules() []string {
	var out []string
	for _, m := range l.AllLoaded() {
		if l.statusOf(m.Name) == StatusModified {
			out = append(out, m.Name)
		}
	}
	return out
}

// listObjectModules returns the module names of all object files directly
// inside dir.
func listObjectModules(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == codeobj.Ext {
			names = append(names, name[:len(name)-len(codeobj.Ext)])
		}
	}
	return names
}
