package checker

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Collect expands paths into the sorted list of files to check. Directories
// are walked recursively, skipping hidden and build folders; only files
// accepted by accept are kept. Files named explicitly are kept as is.
func Collect(paths []string, accept func(string) bool) ([]string, error) {
	if accept == nil {
		accept = func(string) bool { return true }
	}
	seen := make(map[string]struct{})
	var files []string
	add := func(p string) {
		p = filepath.ToSlash(filepath.Clean(p))
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				name := d.Name()
				if path != root && len(name) > 1 && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				if name == "target" || name == "build" || name == "node_modules" {
					return filepath.SkipDir
				}
				return nil
			}
			if accept(path) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	// детерминированный порядок
	slices.Sort(files)
	return files, nil
}
