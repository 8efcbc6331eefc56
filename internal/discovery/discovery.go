// ABOUTME: Best-effort capability discovery over static sources and plugin directories
// ABOUTME: A failing or panicking source is logged and skipped; siblings still register

package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/2389/mcp-scaffold/internal/registry"
)

// Source contributes capabilities of one kind to a builder.
type Source interface {
	Name() string
	Kind() registry.Kind
	Register(b *registry.Builder) error
}

// RegisterFunc adapts a function into a Source.
type RegisterFunc func(b *registry.Builder) error

type funcSource struct {
	name string
	kind registry.Kind
	fn   RegisterFunc
}

// NewSource wraps fn as a named Source of the given kind.
func NewSource(name string, kind registry.Kind, fn RegisterFunc) Source {
	return &funcSource{name: name, kind: kind, fn: fn}
}

func (s *funcSource) Name() string                       { return s.name }
func (s *funcSource) Kind() registry.Kind                { return s.kind }
func (s *funcSource) Register(b *registry.Builder) error { return s.fn(b) }

// Result summarizes one discovery pass.
type Result struct {
	Loaded []string
	Failed []string
}

// Merge appends other into r.
func (r *Result) Merge(other Result) {
	r.Loaded = append(r.Loaded, other.Loaded...)
	r.Failed = append(r.Failed, other.Failed...)
}

// Discoverer runs sources against a builder.
type Discoverer struct {
	logger *slog.Logger
}

// New creates a Discoverer.
func New(logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{logger: logger.With("component", "discovery")}
}

// Run registers every source of the given kind. Sources of other kinds are
// ignored. Errors and panics are recovered per source.
func (d *Discoverer) Run(ctx context.Context, b *registry.Builder, kind registry.Kind, sources []Source) Result {
	var res Result
	for _, src := range sources {
		if src.Kind() != kind {
			continue
		}
		if ctx.Err() != nil {
			d.logger.Warn("discovery cancelled", "kind", kind, "error", ctx.Err())
			res.Failed = append(res.Failed, src.Name())
			continue
		}
		if err := d.load(b, src); err != nil {
			d.logger.Error("failed to load plugin",
				"kind", kind,
				"source", src.Name(),
				"error", err,
			)
			res.Failed = append(res.Failed, src.Name())
			continue
		}
		d.logger.Info("loaded plugin", "kind", kind, "source", src.Name())
		res.Loaded = append(res.Loaded, src.Name())
	}
	return res
}

func (d *Discoverer) load(b *registry.Builder, src Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("plugin panic stack", "source", src.Name(), "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return src.Register(b)
}

// Options drive DiscoverAll.
type Options struct {
	// Builtins are compiled-in sources, always registered.
	Builtins []Source
	// Dirs maps each kind to the directory scanned for manifests.
	Dirs map[registry.Kind]string
	// ScanDirs enables the directory scan (AUTO_DISCOVER).
	ScanDirs bool
}

// DiscoverAll registers builtins and, when enabled, manifest files for every kind.
func (d *Discoverer) DiscoverAll(ctx context.Context, b *registry.Builder, opts Options) Result {
	var total Result
	for _, kind := range registry.Kinds {
		sources := append([]Source(nil), opts.Builtins...)

		if dir := opts.Dirs[kind]; opts.ScanDirs && dir != "" {
			found, err := ScanDir(dir, kind)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				d.logger.Warn("plugin directory does not exist", "kind", kind, "dir", dir)
			case err != nil:
				d.logger.Error("error scanning plugin directory", "kind", kind, "dir", dir, "error", err)
			default:
				sources = append(sources, found...)
			}
		}

		total.Merge(d.Run(ctx, b, kind, sources))
	}

	d.logger.Info("discovery complete",
		"loaded", len(total.Loaded),
		"failed", len(total.Failed),
	)
	return total
}

// dirExists is split out so ScanDir can report a clean not-exist error.
func dirExists(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
