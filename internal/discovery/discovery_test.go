// ABOUTME: Tests for best-effort discovery, directory scanning and manifest loading
// ABOUTME: Failing and panicking plugins must not stop sibling registration

package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-scaffold/internal/logging"
	"github.com/2389/mcp-scaffold/internal/registry"
)

func toolSource(name string) Source {
	return NewSource(name, registry.KindTool, func(b *registry.Builder) error {
		return b.Register(&registry.Capability{
			Name:   name,
			Kind:   registry.KindTool,
			Schema: &jsonschema.Schema{Type: "object"},
			Tool: func(ctx context.Context, args json.RawMessage) (string, error) {
				return name, nil
			},
		})
	})
}

func TestRun_OneFailureDoesNotStopOthers(t *testing.T) {
	b := registry.NewBuilder(logging.Discard())
	d := New(logging.Discard())

	sources := []Source{
		toolSource("first"),
		NewSource("broken", registry.KindTool, func(b *registry.Builder) error {
			return errors.New("import failed")
		}),
		toolSource("third"),
	}

	res := d.Run(context.Background(), b, registry.KindTool, sources)

	assert.Equal(t, []string{"first", "third"}, res.Loaded)
	assert.Equal(t, []string{"broken"}, res.Failed)

	r := b.Build()
	assert.Equal(t, 2, r.Count(registry.KindTool))
	_, ok := r.Lookup(registry.KindTool, "broken")
	assert.False(t, ok)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	b := registry.NewBuilder(logging.Discard())
	d := New(logging.Discard())

	sources := []Source{
		toolSource("a"),
		NewSource("panics", registry.KindTool, func(b *registry.Builder) error {
			panic("nil map write")
		}),
		toolSource("c"),
	}

	var res Result
	require.NotPanics(t, func() {
		res = d.Run(context.Background(), b, registry.KindTool, sources)
	})
	assert.Len(t, res.Loaded, 2)
	assert.Equal(t, []string{"panics"}, res.Failed)
	assert.Equal(t, 2, b.Len())
}

func TestRun_SkipsOtherKindsAndDuplicates(t *testing.T) {
	b := registry.NewBuilder(logging.Discard())
	d := New(logging.Discard())

	res := d.Run(context.Background(), b, registry.KindTool, []Source{
		toolSource("echo"),
		toolSource("echo"),
		NewSource("prompt-src", registry.KindPrompt, func(b *registry.Builder) error {
			t.Fatal("prompt source must not run in tool pass")
			return nil
		}),
	})

	assert.Equal(t, []string{"echo"}, res.Loaded)
	assert.Equal(t, []string{"echo"}, res.Failed)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := registry.NewBuilder(logging.Discard())
	res := New(logging.Discard()).Run(ctx, b, registry.KindTool, []Source{toolSource("x")})
	assert.Empty(t, res.Loaded)
	assert.Equal(t, []string{"x"}, res.Failed)
}

func TestEligible(t *testing.T) {
	tests := map[string]bool{
		"greet.yaml":      true,
		"greet.yml":       true,
		"greet.toml":      true,
		"review.md":       true,
		"_disabled.yaml":  false,
		".hidden.yaml":    false,
		"README.md":       false,
		"__init__.py":     false,
		"doc.go":          false,
		"notes.txt":       false,
		"script.py":       false,
		"":                false,
	}
	for name, want := range tests {
		assert.Equal(t, want, Eligible(name), name)
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", "name: b\n")
	writeFile(t, dir, "a.toml", "name = \"a\"\n")
	writeFile(t, dir, "_skip.yaml", "name: skip\n")
	writeFile(t, dir, ".hidden.yaml", "name: hidden\n")
	writeFile(t, dir, "README.md", "# readme\n")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0755))

	sources, err := ScanDir(dir, registry.KindTool)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, filepath.Join(dir, "a.toml"), sources[0].Name())
	assert.Equal(t, filepath.Join(dir, "b.yaml"), sources[1].Name())
	assert.Equal(t, registry.KindTool, sources[0].Kind())

	_, err = ScanDir(filepath.Join(dir, "missing"), registry.KindTool)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManifest_YAMLTool(t *testing.T) {
	m, err := ParseManifest([]byte(`
name: greet
description: Greets someone
input_schema:
  type: object
  properties:
    who:
      type: string
  required: [who]
template: "Hello, {{.who}}!"
`), ".yaml")
	require.NoError(t, err)

	c, err := m.Capability(registry.KindTool, "")
	require.NoError(t, err)

	b := registry.NewBuilder(logging.Discard())
	require.NoError(t, b.Register(c))

	out, err := c.Tool(context.Background(), json.RawMessage(`{"who":"Ada"}`))
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)

	assert.ErrorIs(t, c.ValidateArgs(json.RawMessage(`{}`)), registry.ErrInvalidArguments)
}

func TestManifest_TOMLResourceFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "motd.txt", "be kind\n")

	m, err := ParseManifest([]byte(`
name = "motd"
uri = "info://motd"
file = "motd.txt"
`), ".toml")
	require.NoError(t, err)

	c, err := m.Capability(registry.KindResource, dir)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", c.MIMEType)

	body, err := c.Resource(context.Background(), "info://motd")
	require.NoError(t, err)
	assert.Equal(t, "be kind\n", body)

	m.File = "missing.txt"
	_, err = m.Capability(registry.KindResource, dir)
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestManifest_MarkdownPrompt(t *testing.T) {
	m, err := ParseManifest([]byte(`---
name: summarize
arguments:
  - name: topic
    required: true
  - name: style
    default: brief
---

# Summarize a topic

Write a {{.style}} summary of {{.topic | title}}.
`), ".md")
	require.NoError(t, err)
	assert.Equal(t, "Summarize a topic", m.Description)

	c, err := m.Capability(registry.KindPrompt, "")
	require.NoError(t, err)
	require.Len(t, c.Arguments, 2)

	msgs, err := c.Prompt(context.Background(), map[string]string{"topic": "go channels"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Contains(t, msgs[0].Text, "Write a brief summary of Go Channels.")

	msgs, err = c.Prompt(context.Background(), map[string]string{"topic": "élan vital"})
	require.NoError(t, err)
	assert.Contains(t, msgs[0].Text, "summary of Élan Vital.")

	_, err = c.Prompt(context.Background(), map[string]string{})
	assert.True(t, registry.IsUserError(err))
}

func TestManifest_Errors(t *testing.T) {
	_, err := ParseManifest([]byte("description: no name\n"), ".yaml")
	assert.ErrorIs(t, err, ErrInvalidManifest)

	_, err = ParseManifest([]byte("# no front matter\n"), ".md")
	assert.ErrorIs(t, err, ErrInvalidManifest)

	_, err = ParseManifest([]byte("---\nname: x\n"), ".md")
	assert.ErrorIs(t, err, ErrInvalidManifest)

	_, err = ParseManifest([]byte("name: x"), ".json")
	assert.ErrorIs(t, err, ErrInvalidManifest)

	m, err := ParseManifest([]byte("kind: prompt\nname: x\ntemplate: hi\n"), ".yaml")
	require.NoError(t, err)
	_, err = m.Capability(registry.KindTool, "")
	assert.ErrorIs(t, err, ErrInvalidManifest)

	md, err := ParseManifest([]byte("---\nname: x\n---\nbody\n"), ".md")
	require.NoError(t, err)
	_, err = md.Capability(registry.KindTool, "")
	assert.ErrorIs(t, err, ErrInvalidManifest)
}

func TestDiscoverAll(t *testing.T) {
	root := t.TempDir()
	toolsDir := filepath.Join(root, "tools")
	require.NoError(t, os.Mkdir(toolsDir, 0755))
	writeFile(t, toolsDir, "greet.yaml", "name: greet\ntemplate: hi\n")
	writeFile(t, toolsDir, "broken.yaml", "name: [oops\n")

	opts := Options{
		Builtins: []Source{toolSource("echo")},
		Dirs: map[registry.Kind]string{
			registry.KindTool:   toolsDir,
			registry.KindPrompt: filepath.Join(root, "prompts"), // missing
		},
		ScanDirs: true,
	}

	b := registry.NewBuilder(logging.Discard())
	res := New(logging.Discard()).DiscoverAll(context.Background(), b, opts)
	assert.Len(t, res.Loaded, 2)
	assert.Equal(t, []string{filepath.Join(toolsDir, "broken.yaml")}, res.Failed)

	r := b.Build()
	_, ok := r.Lookup(registry.KindTool, "greet")
	assert.True(t, ok)

	// scanning disabled leaves only builtins
	b2 := registry.NewBuilder(logging.Discard())
	opts.ScanDirs = false
	res = New(logging.Discard()).DiscoverAll(context.Background(), b2, opts)
	assert.Equal(t, []string{"echo"}, res.Loaded)
}

func TestShippedPluginManifests(t *testing.T) {
	root := filepath.Join("..", "..", "plugins")
	opts := Options{
		Dirs: map[registry.Kind]string{
			registry.KindTool:     filepath.Join(root, "tools"),
			registry.KindResource: filepath.Join(root, "resources"),
			registry.KindPrompt:   filepath.Join(root, "prompts"),
		},
		ScanDirs: true,
	}

	b := registry.NewBuilder(logging.Discard())
	res := New(logging.Discard()).DiscoverAll(context.Background(), b, opts)
	require.Empty(t, res.Failed)
	r := b.Build()

	greet, ok := r.Lookup(registry.KindTool, "greet")
	require.True(t, ok)
	out, err := greet.Tool(context.Background(), json.RawMessage(`{"name":"Ada"}`))
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada!", out)

	usage, ok := r.LookupURI("docs://usage")
	require.True(t, ok)
	text, err := usage.Resource(context.Background(), "docs://usage")
	require.NoError(t, err)
	assert.Contains(t, text, "plugins/prompts")

	summarize, ok := r.Lookup(registry.KindPrompt, "summarize")
	require.True(t, ok)
	assert.Equal(t, "Summarize text in a chosen style", summarize.Description)
	msgs, err := summarize.Prompt(context.Background(), map[string]string{"text": "long text"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "as bullet points")
	assert.Contains(t, msgs[0].Text, "long text")
}
