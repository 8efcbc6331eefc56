// ABOUTME: Configuration tree loading and dotted-path lookups for the MCP server
// ABOUTME: Supports YAML and TOML files with one-shot ${VAR} expansion

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound indicates the configuration file does not exist.
var ErrConfigNotFound = errors.New("config file not found")

// ErrConfigParse indicates the configuration file could not be decoded.
var ErrConfigParse = errors.New("config file malformed")

// DefaultPath is used when neither --config nor MCP_CONFIG name a file.
const DefaultPath = "configs/settings.yaml"

var placeholderRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// Tree is an immutable snapshot of the loaded configuration.
type Tree struct {
	root       map[string]any
	source     string
	unresolved []string
}

// Load reads the file at path and returns a fully resolved Tree.
// The decoder is picked from the extension: .toml uses TOML, anything else YAML.
func Load(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}

	tree, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	tree.source = path
	return tree, nil
}

// Parse decodes raw configuration bytes in the given format ("yaml" or "toml").
func Parse(data []byte, format string) (*Tree, error) {
	raw := map[string]any{}

	switch format {
	case "toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	case "yaml", "yml", "":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported format %q", ErrConfigParse, format)
	}

	t := &Tree{}
	root, ok := normalize(raw).(map[string]any)
	if !ok || root == nil {
		root = map[string]any{}
	}
	t.root = t.expand(root).(map[string]any)
	return t, nil
}

// FromMap builds a Tree directly from nested maps. Placeholders are expanded
// the same way Load expands them.
func FromMap(m map[string]any) *Tree {
	t := &Tree{}
	root, _ := normalize(m).(map[string]any)
	if root == nil {
		root = map[string]any{}
	}
	t.root = t.expand(root).(map[string]any)
	return t
}

// Source returns the path the tree was loaded from, if any.
func (t *Tree) Source() string { return t.source }

// Unresolved lists placeholder variable names that had no value at load time.
func (t *Tree) Unresolved() []string {
	return append([]string(nil), t.unresolved...)
}

// Get walks the dotted path and returns the value found, or def when any
// segment is missing, null, or reached through a non-mapping node.
func (t *Tree) Get(path string, def any) any {
	if t == nil || path == "" {
		return def
	}
	var cur any = t.root
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return def
		}
	}
	return cur
}

// Has reports whether the dotted path resolves to a non-null value.
func (t *Tree) Has(path string) bool {
	return t.Get(path, nil) != nil
}

// GetString returns the value at path formatted as a string.
func (t *Tree) GetString(path, def string) string {
	switch v := t.Get(path, nil).(type) {
	case nil:
		return def
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// GetInt returns the value at path as an int, or def if it is not integral.
func (t *Tree) GetInt(path string, def int) int {
	if n, ok := AsInt(t.Get(path, nil)); ok {
		return n
	}
	return def
}

// GetBool returns the value at path as a bool. Strings use ParseFlag.
func (t *Tree) GetBool(path string, def bool) bool {
	switch v := t.Get(path, nil).(type) {
	case bool:
		return v
	case string:
		if b, ok := ParseFlag(v); ok {
			return b
		}
	}
	return def
}

// GetDuration accepts Go duration strings ("5s") or integral seconds.
func (t *Tree) GetDuration(path string, def time.Duration) time.Duration {
	v := t.Get(path, nil)
	if s, ok := v.(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		return def
	}
	if n, ok := AsInt(v); ok {
		return time.Duration(n) * time.Second
	}
	return def
}

// GetStringSlice returns a sequence of strings. A scalar string becomes a
// single-element slice.
func (t *Tree) GetStringSlice(path string, def []string) []string {
	switch v := t.Get(path, nil).(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{v}
	}
	return def
}

// AsInt converts decoded integer values (and integer strings) to int.
// Floats, bools and out-of-range numbers are rejected.
func AsInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// HasPlaceholder reports whether s still contains a ${VAR} reference.
func HasPlaceholder(s string) bool { return placeholderRe.MatchString(s) }

// ParseFlag understands the boolean vocabulary used by environment overrides.
func ParseFlag(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "on":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

// expand resolves ${VAR} placeholders inside every string of the tree.
func (t *Tree) expand(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[k] = t.expand(item)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = t.expand(item)
		}
		return out
	case string:
		return placeholderRe.ReplaceAllStringFunc(n, func(match string) string {
			name := placeholderRe.FindStringSubmatch(match)[1]
			if val, ok := os.LookupEnv(name); ok {
				return val
			}
			t.unresolved = append(t.unresolved, name)
			return match
		})
	default:
		return v
	}
}

// normalize converts decoder-specific container types into map[string]any and []any.
func normalize(v any) any {
	switch n := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(n))
		for k, item := range n {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, item := range n {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}
