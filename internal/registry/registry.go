// ABOUTME: Builder collects capability registrations; Registry is the frozen result
// ABOUTME: Duplicate (kind, name) pairs are rejected at registration time

package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ErrDuplicateCapability indicates the (kind, name) pair is already registered.
var ErrDuplicateCapability = errors.New("duplicate capability")

// ErrInvalidCapability indicates a registration record is incomplete.
var ErrInvalidCapability = errors.New("invalid capability")

// ErrRegistryFinalized indicates Register was called after Build.
var ErrRegistryFinalized = errors.New("registry already finalized")

// ErrInvalidArguments indicates tool arguments failed schema validation.
var ErrInvalidArguments = errors.New("invalid arguments")

// Builder accumulates registrations during startup. Safe for concurrent use.
type Builder struct {
	mu     sync.Mutex
	caps   map[string]*Capability
	uris   map[string]*Capability
	built  bool
	logger *slog.Logger
}

// NewBuilder creates an empty Builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		caps:   make(map[string]*Capability),
		uris:   make(map[string]*Capability),
		logger: logger.With("component", "registry"),
	}
}

// Register validates c and adds it. A second registration under the same
// (kind, name) fails with ErrDuplicateCapability.
func (b *Builder) Register(c *Capability) error {
	if err := check(c); err != nil {
		return err
	}
	if c.Kind == KindTool {
		resolved, err := c.Schema.Resolve(nil)
		if err != nil {
			return fmt.Errorf("%w: tool '%s' schema: %v", ErrInvalidCapability, c.Name, err)
		}
		c.resolved = resolved
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.built {
		return ErrRegistryFinalized
	}
	if existing, ok := b.caps[c.Key()]; ok {
		return fmt.Errorf("%w: %s '%s' already registered by %s",
			ErrDuplicateCapability, c.Kind, c.Name, sourceOf(existing))
	}
	if c.Kind == KindResource {
		if existing, ok := b.uris[c.URI]; ok {
			return fmt.Errorf("%w: resource uri '%s' already served by '%s'",
				ErrDuplicateCapability, c.URI, existing.Name)
		}
		b.uris[c.URI] = c
	}
	b.caps[c.Key()] = c

	b.logger.Debug("capability registered",
		"kind", c.Kind,
		"name", c.Name,
		"source", sourceOf(c),
	)
	return nil
}

// Len returns the number of registrations so far.
func (b *Builder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.caps)
}

// Build freezes the builder and returns the immutable registry.
func (b *Builder) Build() *Registry {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.built = true

	r := &Registry{
		byKey:  make(map[string]*Capability, len(b.caps)),
		byURI:  make(map[string]*Capability, len(b.uris)),
		byKind: make(map[Kind][]*Capability),
	}
	for uri, c := range b.uris {
		r.byURI[uri] = c
	}
	for key, c := range b.caps {
		r.byKey[key] = c
		r.byKind[c.Kind] = append(r.byKind[c.Kind], c)
	}
	for _, list := range r.byKind {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}

	b.logger.Info("=== REGISTRY FINALIZED ===",
		"tools", len(r.byKind[KindTool]),
		"resources", len(r.byKind[KindResource]),
		"prompts", len(r.byKind[KindPrompt]),
	)
	return r
}

// Registry is the finalized, read-only set of capabilities. It has no
// mutating methods and is safe to share between goroutines.
type Registry struct {
	byKey  map[string]*Capability
	byURI  map[string]*Capability
	byKind map[Kind][]*Capability
}

// Lookup finds a capability by kind and name.
func (r *Registry) Lookup(kind Kind, name string) (*Capability, bool) {
	c, ok := r.byKey[string(kind)+":"+name]
	return c, ok
}

// LookupURI finds a resource by its URI.
func (r *Registry) LookupURI(uri string) (*Capability, bool) {
	c, ok := r.byURI[uri]
	return c, ok
}

// List returns the capabilities of a kind sorted by name. The slice is a copy.
func (r *Registry) List(kind Kind) []*Capability {
	return append([]*Capability(nil), r.byKind[kind]...)
}

// Count returns the number of capabilities of a kind.
func (r *Registry) Count(kind Kind) int { return len(r.byKind[kind]) }

// Len returns the total number of capabilities.
func (r *Registry) Len() int { return len(r.byKey) }

func check(c *Capability) error {
	if c == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidCapability)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCapability)
	}
	switch c.Kind {
	case KindTool:
		if c.Tool == nil {
			return fmt.Errorf("%w: tool '%s' has no handler", ErrInvalidCapability, c.Name)
		}
		if c.Schema == nil || c.Schema.Type != "object" {
			return fmt.Errorf("%w: tool '%s' schema must have type \"object\"", ErrInvalidCapability, c.Name)
		}
	case KindResource:
		if c.Resource == nil {
			return fmt.Errorf("%w: resource '%s' has no handler", ErrInvalidCapability, c.Name)
		}
		if c.URI == "" {
			return fmt.Errorf("%w: resource '%s' has no uri", ErrInvalidCapability, c.Name)
		}
	case KindPrompt:
		if c.Prompt == nil {
			return fmt.Errorf("%w: prompt '%s' has no handler", ErrInvalidCapability, c.Name)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}
	return nil
}

func sourceOf(c *Capability) string {
	if c.Source == "" {
		return "unknown source"
	}
	return c.Source
}
