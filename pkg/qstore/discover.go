package qstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// vcsMarkers are directory/file names that mark a project root when
// searched upward from a starting directory, in the absence of a more
// specific qualifier.graph.jsonl marker.
var vcsMarkers = []string{".git", ".hg", ".jj", ".pijul", "_FOSSIL_", ".svn"}

// legacyGraphFile is the well-known name of the legacy dependency graph
// file (§5.3), whose presence also marks a project root.
const legacyGraphFile = "qualifier.graph.jsonl"

// recordFileSuffix is the extension record files are discovered by.
const recordFileSuffix = ".qual"

// FindRoot searches upward from startDir, inclusive, for a directory
// containing a VCS marker or a legacy graph file, and returns the
// first one found. If none is found by the filesystem root, startDir
// itself is returned so discovery can still proceed in a VCS-less
// checkout.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("qstore: abs %s: %w", startDir, err)
	}

	dir := abs
	for {
		if hasRootMarker(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		dir = parent
	}
}

func hasRootMarker(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, legacyGraphFile)); err == nil {
		return true
	}
	for _, marker := range vcsMarkers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// Discover walks root recursively and returns a RecordFile for every
// file named exactly ".qual" or ending in ".qual", sorted by path for
// deterministic ordering. Parse errors on a given file are attached to
// its RecordFile rather than aborting the walk — one malformed file
// never hides the records in the rest of the tree.
func Discover(root string) ([]*RecordFile, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == recordFileSuffix || strings.HasSuffix(d.Name(), recordFileSuffix) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("qstore: walk %s: %w", root, err)
	}
	sort.Strings(paths)

	files := make([]*RecordFile, 0, len(paths))
	for _, p := range paths {
		rf, err := ParseFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, rf)
	}
	return files, nil
}
