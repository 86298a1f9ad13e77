package uitests

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/launchdarkly/diagnostic-contract-tests/revision"
)

// Discover returns the fixtures under root whose extension is one of extensions, in lexical
// order of their paths. Directories whose names start with "." are not searched.
func Discover(root string, extensions []string) ([]revision.Fixture, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("cannot read fixture root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fixture root %s is not a directory", absRoot)
	}

	var fixtures []revision.Fixture
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != absRoot && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExtension(d.Name(), extensions) {
			return nil
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		fixtures = append(fixtures, revision.Fixture{
			Path:   path,
			Name:   filepath.ToSlash(rel),
			Source: string(source),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fixture discovery failed: %w", err)
	}
	return fixtures, nil
}

func hasExtension(name string, extensions []string) bool {
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return true
		}
	}
	return false
}
