package codepath

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// looksLikeVersion reports whether s is a plausible dotted version suffix,
// meaning its first segment is numeric ("1", "2.3.0", "0.9-rc1").
func looksLikeVersion(s string) bool {
	if s == "" {
		return false
	}
	head := s
	if i := strings.IndexAny(s, ".-"); i >= 0 {
		head = s[:i]
	}
	_, err := strconv.Atoi(head)
	return err == nil
}

// compareVersions orders two dotted version suffixes. Segments compare
// numerically when both sides are numeric, lexicographically otherwise, and
// a longer version with equal prefix sorts higher. An empty version sorts
// lowest.
func compareVersions(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		switch {
		case aerr == nil && berr == nil:
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
		default:
			if as[i] != bs[i] {
				if as[i] < bs[i] {
					return -1
				}
				return 1
			}
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

// LibDirs expands a library root into the object directories of the
// libraries beneath it, following the root/Name[-Version]/obj convention.
// Library directories without an obj subdirectory contribute themselves.
func LibDirs(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}
	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		lib := filepath.Join(root, entry.Name())
		obj := filepath.Join(lib, ObjDir)
		if info, err := os.Stat(obj); err == nil && info.IsDir() {
			dirs = append(dirs, obj)
		} else {
			dirs = append(dirs, lib)
		}
	}
	return dirs
}

// SplitEnvPath splits the value of the library-root environment variable on
// the platform's path list separator, dropping empty entries.
func SplitEnvPath(value string) []string {
	var roots []string
	for _, root := range strings.Split(value, string(os.PathListSeparator)) {
		if root != "" {
			roots = append(roots, root)
		}
	}
	return roots
}
