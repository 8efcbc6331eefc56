// ABOUTME: Declarative capability manifests in YAML, TOML or markdown with front matter
// ABOUTME: Manifests become registry capabilities backed by text/template rendering

package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/BurntSushi/toml"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/2389/mcp-scaffold/internal/registry"
	"github.com/2389/mcp-scaffold/internal/textcase"
)

// ErrInvalidManifest indicates a manifest file could not be turned into a capability.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the declarative form of a capability.
type Manifest struct {
	Kind        string `yaml:"kind" toml:"kind"`
	Name        string `yaml:"name" toml:"name"`
	Title       string `yaml:"title" toml:"title"`
	Description string `yaml:"description" toml:"description"`

	// tools and prompts
	Template string `yaml:"template" toml:"template"`

	// tools
	InputSchema map[string]any `yaml:"input_schema" toml:"input_schema"`

	// resources
	URI      string `yaml:"uri" toml:"uri"`
	MIMEType string `yaml:"mime_type" toml:"mime_type"`
	Text     string `yaml:"text" toml:"text"`
	File     string `yaml:"file" toml:"file"`

	// prompts
	Arguments []ManifestArgument `yaml:"arguments" toml:"arguments"`

	markdown bool
}

// ManifestArgument declares a prompt argument.
type ManifestArgument struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description" toml:"description"`
	Required    bool   `yaml:"required" toml:"required"`
	Default     string `yaml:"default" toml:"default"`
}

// LoadManifest reads and decodes a manifest file by extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data, filepath.Ext(path))
}

// ParseManifest decodes manifest bytes. ext selects the format (".yaml", ".toml", ".md").
func ParseManifest(data []byte, ext string) (*Manifest, error) {
	var m Manifest
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
	case ".md":
		if err := parseMarkdown(data, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unsupported extension %q", ErrInvalidManifest, ext)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidManifest)
	}
	return &m, nil
}

// parseMarkdown splits YAML front matter from the body. The body becomes the
// template and its first heading the fallback description.
func parseMarkdown(data []byte, m *Manifest) error {
	src := bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(src, []byte("---\n")) {
		return fmt.Errorf("%w: markdown manifest needs front matter", ErrInvalidManifest)
	}
	rest := src[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		return fmt.Errorf("%w: unterminated front matter", ErrInvalidManifest)
	}
	if err := yaml.Unmarshal(rest[:end], m); err != nil {
		return fmt.Errorf("%w: front matter: %v", ErrInvalidManifest, err)
	}
	body := bytes.TrimLeft(rest[end+len("\n---\n"):], "\n")

	m.Template = string(body)
	m.markdown = true
	if m.Description == "" {
		m.Description = firstHeading(body)
	}
	return nil
}

// firstHeading returns the text of the first markdown heading in src.
func firstHeading(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var heading string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		lines := h.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(src))
		}
		heading = strings.TrimSpace(buf.String())
		return ast.WalkStop, nil
	})
	return heading
}

// Capability converts the manifest into a registry record of the given kind.
// baseDir resolves relative resource files.
func (m *Manifest) Capability(kind registry.Kind, baseDir string) (*registry.Capability, error) {
	if m.Kind != "" {
		declared, err := registry.ParseKind(m.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
		}
		if declared != kind {
			return nil, fmt.Errorf("%w: %s manifest found in %s directory", ErrInvalidManifest, declared, kind.Dir())
		}
	}

	c := &registry.Capability{
		Name:        m.Name,
		Kind:        kind,
		Title:       m.Title,
		Description: m.Description,
	}

	switch kind {
	case registry.KindTool:
		return m.toolCapability(c)
	case registry.KindResource:
		return m.resourceCapability(c, baseDir)
	case registry.KindPrompt:
		return m.promptCapability(c)
	}
	return nil, fmt.Errorf("%w: %q", registry.ErrUnknownKind, kind)
}

func (m *Manifest) toolCapability(c *registry.Capability) (*registry.Capability, error) {
	if m.markdown {
		return nil, fmt.Errorf("%w: tools cannot be declared in markdown", ErrInvalidManifest)
	}
	if m.Template == "" {
		return nil, fmt.Errorf("%w: tool '%s' needs a template", ErrInvalidManifest, m.Name)
	}
	tmpl, err := template.New(m.Name).Option("missingkey=zero").Parse(m.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: tool '%s' template: %v", ErrInvalidManifest, m.Name, err)
	}

	schema := &jsonschema.Schema{Type: "object"}
	if len(m.InputSchema) > 0 {
		raw, err := json.Marshal(m.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("%w: tool '%s' schema: %v", ErrInvalidManifest, m.Name, err)
		}
		schema = &jsonschema.Schema{}
		if err := json.Unmarshal(raw, schema); err != nil {
			return nil, fmt.Errorf("%w: tool '%s' schema: %v", ErrInvalidManifest, m.Name, err)
		}
	}
	c.Schema = schema

	c.Tool = func(ctx context.Context, args json.RawMessage) (string, error) {
		data := map[string]any{}
		if len(args) > 0 && string(args) != "null" {
			if err := json.Unmarshal(args, &data); err != nil {
				return "", registry.UserErrorf("arguments must be a JSON object")
			}
		}
		var out bytes.Buffer
		if err := tmpl.Execute(&out, data); err != nil {
			return "", fmt.Errorf("rendering tool '%s': %w", m.Name, err)
		}
		return out.String(), nil
	}
	return c, nil
}

func (m *Manifest) resourceCapability(c *registry.Capability, baseDir string) (*registry.Capability, error) {
	if m.URI == "" {
		return nil, fmt.Errorf("%w: resource '%s' needs a uri", ErrInvalidManifest, m.Name)
	}
	c.URI = m.URI
	c.MIMEType = m.MIMEType

	switch {
	case m.markdown:
		if c.MIMEType == "" {
			c.MIMEType = "text/markdown"
		}
		body := m.Template
		c.Resource = func(ctx context.Context, uri string) (string, error) { return body, nil }
	case m.File != "":
		path := m.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: resource '%s' file: %v", ErrInvalidManifest, m.Name, err)
		}
		c.Resource = func(ctx context.Context, uri string) (string, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("reading resource '%s': %w", m.Name, err)
			}
			return string(data), nil
		}
	default:
		body := m.Text
		c.Resource = func(ctx context.Context, uri string) (string, error) { return body, nil }
	}
	if c.MIMEType == "" {
		c.MIMEType = "text/plain"
	}
	return c, nil
}

func (m *Manifest) promptCapability(c *registry.Capability) (*registry.Capability, error) {
	if m.Template == "" {
		return nil, fmt.Errorf("%w: prompt '%s' needs a template", ErrInvalidManifest, m.Name)
	}
	tmpl, err := template.New(m.Name).Option("missingkey=zero").Funcs(template.FuncMap{
		"title": textcase.Title,
	}).Parse(m.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: prompt '%s' template: %v", ErrInvalidManifest, m.Name, err)
	}

	args := make([]registry.PromptArgument, 0, len(m.Arguments))
	for _, a := range m.Arguments {
		args = append(args, registry.PromptArgument{
			Name:        a.Name,
			Description: a.Description,
			Required:    a.Required,
			Default:     a.Default,
		})
	}
	c.Arguments = args

	c.Prompt = func(ctx context.Context, in map[string]string) ([]registry.PromptMessage, error) {
		data := make(map[string]string, len(args))
		for _, a := range args {
			v, ok := in[a.Name]
			if !ok || v == "" {
				if a.Required {
					return nil, registry.UserErrorf("missing required argument %q", a.Name)
				}
				v = a.Default
			}
			data[a.Name] = v
		}
		var out bytes.Buffer
		if err := tmpl.Execute(&out, data); err != nil {
			return nil, fmt.Errorf("rendering prompt '%s': %w", m.Name, err)
		}
		return []registry.PromptMessage{{Role: "user", Text: out.String()}}, nil
	}
	return c, nil
}
