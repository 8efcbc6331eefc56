// ABOUTME: Plugin directory scanning for declarative capability manifests
// ABOUTME: Skips hidden, underscore-prefixed and package-marker files

package discovery

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/2389/mcp-scaffold/internal/registry"
)

var manifestExts = map[string]bool{
	".yaml": true,
	".yml":  true,
	".toml": true,
	".md":   true,
}

var packageMarkers = map[string]bool{
	"doc.go":      true,
	"__init__.py": true,
	"readme.md":   true,
}

// Eligible reports whether a file name in a plugin directory should be loaded.
func Eligible(name string) bool {
	if name == "" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
		return false
	}
	if packageMarkers[strings.ToLower(name)] {
		return false
	}
	return manifestExts[strings.ToLower(filepath.Ext(name))]
}

// ScanDir returns one Source per eligible manifest in dir, sorted by file name.
// Subdirectories are not descended into.
func ScanDir(dir string, kind registry.Kind) ([]Source, error) {
	if err := dirExists(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !Eligible(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	sources := make([]Source, 0, len(names))
	for _, name := range names {
		sources = append(sources, &manifestSource{
			path: filepath.Join(dir, name),
			kind: kind,
		})
	}
	return sources, nil
}

type manifestSource struct {
	path string
	kind registry.Kind
}

func (s *manifestSource) Name() string        { return s.path }
func (s *manifestSource) Kind() registry.Kind { return s.kind }

func (s *manifestSource) Register(b *registry.Builder) error {
	m, err := LoadManifest(s.path)
	if err != nil {
		return err
	}
	c, err := m.Capability(s.kind, filepath.Dir(s.path))
	if err != nil {
		return err
	}
	c.Source = s.path
	return b.Register(c)
}
