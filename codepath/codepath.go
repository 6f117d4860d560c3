// Package codepath maintains the ordered search path used to resolve module
// names to on-disk object containers. Directories follow the layout
// convention root/Name[-Version]/obj, and object files are named
// <Module>.mox.
package codepath

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/modlink-io/modlink/codeobj"
	"github.com/modlink-io/modlink/errz"
)

// ObjDir is the conventional name of the object subdirectory inside a
// versioned library directory.
const ObjDir = "obj"

// Path is an ordered search path. Inserting a directory that is already
// present moves it to the new position rather than duplicating it. All
// methods are safe for concurrent use.
type Path struct {
	mu   sync.RWMutex
	dirs []string
}

// New creates an empty search path.
func New() *Path {
	return &Path{}
}

// Dirs returns a copy of the current search path, in resolution order.
func (p *Path) Dirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dirs := make([]string, len(p.dirs))
	copy(dirs, p.dirs)
	return dirs
}

// Len returns the number of directories in the path.
func (p *Path) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.dirs)
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return &errz.PathError{Kind: errz.NotADirectory, Dir: dir, Cause: err}
	}
	return nil
}

func (p *Path) insert(dir string, front bool) error {
	dir = filepath.Clean(dir)
	if err := checkDir(dir); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleteLocked(dir)
	if front {
		p.dirs = append([]string{dir}, p.dirs...)
	} else {
		p.dirs = append(p.dirs, dir)
	}
	return nil
}

// deleteLocked removes dir from the path if present. Caller holds the lock.
func (p *Path) deleteLocked(dir string) bool {
	for i, d := range p.dirs {
		if d == dir {
			p.dirs = append(p.dirs[:i], p.dirs[i+1:]...)
			return true
		}
	}
	return false
}

// Append inserts dir at the end of the path. An existing occurrence is moved,
// not duplicated. Returns NotADirectory if dir does not exist.
func (p *Path) Append(dir string) error {
	return p.insert(dir, false)
}

// Prepend inserts dir at the front of the path. An existing occurrence is
// moved, not duplicated. Returns NotADirectory if dir does not exist.
func (p *Path) Prepend(dir string) error {
	return p.insert(dir, true)
}

// AppendAll appends each directory in order, silently skipping entries that
// are not valid directories.
func (p *Path) AppendAll(dirs []string) {
	for _, dir := range dirs {
		_ = p.Append(dir)
	}
}

// PrependAll prepends each directory in order, silently skipping invalid
// entries. Prepending [d1, d2] yields [d2, d1, ...existing].
func (p *Path) PrependAll(dirs []string) {
	for _, dir := range dirs {
		_ = p.Prepend(dir)
	}
}

// Remove deletes an entry from the path. The target is either a literal
// directory path or a symbolic library name resolved against the
// Name[-Version]/obj convention, selecting the highest version present.
// Returns BadName for a malformed name and NotFound when nothing matches.
func (p *Path) Remove(target string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if strings.ContainsRune(target, os.PathSeparator) || strings.ContainsRune(target, '/') {
		if p.deleteLocked(filepath.Clean(target)) {
			return nil
		}
		return &errz.PathError{Kind: errz.NotFound, Dir: target}
	}
	if !validLibName(target) {
		return &errz.PathError{Kind: errz.BadName, Name: target}
	}
	// A literal match on a bare directory name takes precedence over the
	// library name convention.
	if p.deleteLocked(filepath.Clean(target)) {
		return nil
	}
	idx := p.findLibLocked(target)
	if idx < 0 {
		return &errz.PathError{Kind: errz.NotFound, Name: target}
	}
	p.dirs = append(p.dirs[:idx], p.dirs[idx+1:]...)
	return nil
}

// Replace swaps the path entry matching name for newDir, in place. When no
// entry matches, newDir is appended instead.
func (p *Path) Replace(name, newDir string) error {
	nameOK := validLibName(name)
	dirOK := checkDir(newDir) == nil
	switch {
	case !nameOK && !dirOK:
		return &errz.PathError{Kind: errz.BadArgument, Name: name, Dir: newDir}
	case !nameOK:
		return &errz.PathError{Kind: errz.BadName, Name: name}
	case !dirOK:
		return &errz.PathError{Kind: errz.BadDirectory, Dir: newDir}
	}
	newDir = filepath.Clean(newDir)
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx := p.findLibLocked(name); idx >= 0 {
		p.dirs[idx] = newDir
		return nil
	}
	p.deleteLocked(newDir)
	p.dirs = append(p.dirs, newDir)
	return nil
}

// findLibLocked returns the index of the path entry whose library name
// matches name under the Name[-Version]/obj convention, preferring the
// highest version. Returns -1 when nothing matches. Caller holds the lock.
func (p *Path) findLibLocked(name string) int {
	best := -1
	var bestVersion string
	for i, dir := range p.dirs {
		libName, version, ok := splitLibDir(dir)
		if !ok || libName != name {
			continue
		}
		if best < 0 || compareVersions(version, bestVersion) > 0 {
			best = i
			bestVersion = version
		}
	}
	return best
}

// Resolve scans the path in order and returns the first directory containing
// an object file for the given module name.
func (p *Path) Resolve(module string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	filename := module + codeobj.Ext
	for _, dir := range p.dirs {
		if fileExists(filepath.Join(dir, filename)) {
			return dir, nil
		}
	}
	return "", &errz.PathError{Kind: errz.NotFound, Name: module}
}

// LocateFile scans the path in order and returns the full path of the first
// occurrence of an arbitrary filename.
func (p *Path) LocateFile(filename string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, dir := range p.dirs {
		full := filepath.Join(dir, filename)
		if fileExists(full) {
			return full, nil
		}
	}
	return "", &errz.PathError{Kind: errz.NotFound, Name: filename}
}

// Clash reports one entry per module whose object file appears in more than
// one path directory. The first directory in path order wins; the rest are
// shadowed.
type Clash struct {
	Module   string
	Winner   string
	Shadowed []string
}

// Clashes scans the whole path and reports modules that resolve to more than
// one directory.
func (p *Path) Clashes() []Clash {
	p.mu.RLock()
	dirs := make([]string, len(p.dirs))
	copy(dirs, p.dirs)
	p.mu.RUnlock()

	seen := map[string][]string{}
	var order []string
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, codeobj.Ext) {
				continue
			}
			module := strings.TrimSuffix(name, codeobj.Ext)
			if _, ok := seen[module]; !ok {
				order = append(order, module)
			}
			seen[module] = append(seen[module], dir)
		}
	}
	var clashes []Clash
	for _, module := range order {
		if hits := seen[module]; len(hits) > 1 {
			clashes = append(clashes, Clash{
				Module:   module,
				Winner:   hits[0],
				Shadowed: hits[1:],
			})
		}
	}
	return clashes
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func validLibName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, "/\\")
}

// splitLibDir decomposes a path entry of the form .../Name[-Version]/obj
// (or .../Name[-Version]) into its library name and version suffix.
func splitLibDir(dir string) (name, version string, ok bool) {
	lib := filepath.Base(dir)
	if lib == ObjDir {
		lib = filepath.Base(filepath.Dir(dir))
	}
	if lib == "." || lib == string(os.PathSeparator) || lib == "" {
		return "", "", false
	}
	if i := strings.LastIndexByte(lib, '-'); i > 0 && looksLikeVersion(lib[i+1:]) {
		return lib[:i], lib[i+1:], true
	}
	return lib, "", true
}
