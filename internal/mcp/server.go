// ABOUTME: MCP protocol binding that registers every capability with the SDK server
// ABOUTME: Validates tool input, maps user errors to IsError results and recovers panics

package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389/mcp-scaffold/internal/registry"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// internalErrorText is all a caller ever sees of an unexpected failure.
const internalErrorText = "Error: internal error"

// Config holds configuration for the MCP server.
type Config struct {
	Name         string
	Version      string
	Instructions string
	Registry     *registry.Registry
	Logger       *slog.Logger
	Stateless    bool
}

// Server exposes a registry over Streamable HTTP.
type Server struct {
	registry *registry.Registry
	logger   *slog.Logger
	sdk      *sdk.Server
	handler  http.Handler
}

// NewServer builds the SDK server and registers every capability in cfg.Registry.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Name == "" {
		return nil, errors.New("server name is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcp")

	s := &Server{
		registry: cfg.Registry,
		logger:   logger,
		sdk: sdk.NewServer(&sdk.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, &sdk.ServerOptions{
			Instructions: cfg.Instructions,
			Logger:       logger,
		}),
	}

	for _, c := range cfg.Registry.List(registry.KindTool) {
		s.sdk.AddTool(&sdk.Tool{
			Name:        c.Name,
			Title:       c.Title,
			Description: c.Description,
			InputSchema: c.Schema,
		}, s.toolHandler(c))
	}
	for _, c := range cfg.Registry.List(registry.KindResource) {
		s.sdk.AddResource(&sdk.Resource{
			Name:        c.Name,
			Title:       c.Title,
			Description: c.Description,
			URI:         c.URI,
			MIMEType:    c.MIMEType,
		}, s.resourceHandler(c))
	}
	for _, c := range cfg.Registry.List(registry.KindPrompt) {
		args := make([]*sdk.PromptArgument, 0, len(c.Arguments))
		for _, a := range c.Arguments {
			args = append(args, &sdk.PromptArgument{
				Name:        a.Name,
				Description: a.Description,
				Required:    a.Required,
			})
		}
		s.sdk.AddPrompt(&sdk.Prompt{
			Name:        c.Name,
			Title:       c.Title,
			Description: c.Description,
			Arguments:   args,
		}, s.promptHandler(c))
	}

	streamable := sdk.NewStreamableHTTPHandler(func(*http.Request) *sdk.Server {
		return s.sdk
	}, &sdk.StreamableHTTPOptions{
		Stateless:    cfg.Stateless,
		JSONResponse: true,
		Logger:       logger,
	})
	s.handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		streamable.ServeHTTP(w, r)
	})

	logger.Info("MCP server ready",
		"tools", cfg.Registry.Count(registry.KindTool),
		"resources", cfg.Registry.Count(registry.KindResource),
		"prompts", cfg.Registry.Count(registry.KindPrompt),
		"stateless", cfg.Stateless,
	)
	return s, nil
}

// ServeHTTP serves the MCP endpoint.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Registry returns the registry this server exposes.
func (s *Server) Registry() *registry.Registry { return s.registry }

func textResult(text string, isError bool) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
		IsError: isError,
	}
}

func (s *Server) toolHandler(c *registry.Capability) sdk.ToolHandler {
	return func(ctx context.Context, req *sdk.CallToolRequest) (res *sdk.CallToolResult, err error) {
		defer func() {
			if p := recover(); p != nil {
				s.logPanic(c, p)
				res, err = textResult(internalErrorText, true), nil
			}
		}()

		args := req.Params.Arguments
		if err := c.ValidateArgs(args); err != nil {
			s.logger.Debug("tool arguments rejected", "tool", c.Name, "error", err)
			return textResult("Error: "+err.Error(), true), nil
		}

		out, err := c.Tool(ctx, args)
		if err != nil {
			if registry.IsUserError(err) {
				return textResult("Error: "+err.Error(), true), nil
			}
			s.logger.Error("tool failed", "tool", c.Name, "error", err)
			return textResult(internalErrorText, true), nil
		}
		return textResult(out, false), nil
	}
}

func (s *Server) resourceHandler(c *registry.Capability) sdk.ResourceHandler {
	return func(ctx context.Context, req *sdk.ReadResourceRequest) (res *sdk.ReadResourceResult, err error) {
		defer func() {
			if p := recover(); p != nil {
				s.logPanic(c, p)
				res, err = nil, errors.New("internal error")
			}
		}()

		uri := req.Params.URI
		text, err := c.Resource(ctx, uri)
		if err != nil {
			return nil, s.callerError(c, err)
		}
		return &sdk.ReadResourceResult{
			Contents: []*sdk.ResourceContents{{
				URI:      uri,
				MIMEType: c.MIMEType,
				Text:     text,
			}},
		}, nil
	}
}

func (s *Server) promptHandler(c *registry.Capability) sdk.PromptHandler {
	return func(ctx context.Context, req *sdk.GetPromptRequest) (res *sdk.GetPromptResult, err error) {
		defer func() {
			if p := recover(); p != nil {
				s.logPanic(c, p)
				res, err = nil, errors.New("internal error")
			}
		}()

		msgs, err := c.Prompt(ctx, req.Params.Arguments)
		if err != nil {
			return nil, s.callerError(c, err)
		}
		out := &sdk.GetPromptResult{Description: c.Description}
		for _, m := range msgs {
			role := sdk.Role(m.Role)
			if role == "" {
				role = "user"
			}
			out.Messages = append(out.Messages, &sdk.PromptMessage{
				Role:    role,
				Content: &sdk.TextContent{Text: m.Text},
			})
		}
		return out, nil
	}
}

// callerError keeps user-facing messages and hides everything else.
func (s *Server) callerError(c *registry.Capability, err error) error {
	if registry.IsUserError(err) {
		return err
	}
	s.logger.Error("capability failed", "kind", c.Kind, "name", c.Name, "error", err)
	return errors.New("internal error")
}

func (s *Server) logPanic(c *registry.Capability, p any) {
	s.logger.Error("capability panicked",
		"kind", c.Kind,
		"name", c.Name,
		"panic", fmt.Sprint(p),
		"stack", string(debug.Stack()),
	)
}
