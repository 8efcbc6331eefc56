// ABOUTME: Capability records describing tools, resources and prompts
// ABOUTME: Handler signatures and the user-facing error type returned by tools

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Kind classifies a capability.
type Kind string

const (
	KindTool     Kind = "tool"
	KindResource Kind = "resource"
	KindPrompt   Kind = "prompt"
)

// Kinds lists every kind in discovery order.
var Kinds = []Kind{KindTool, KindResource, KindPrompt}

// ErrUnknownKind indicates a kind string outside tool/resource/prompt.
var ErrUnknownKind = errors.New("unknown capability kind")

// ParseKind accepts singular or plural forms ("tool", "tools").
func ParseKind(s string) (Kind, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "s") {
	case "tool":
		return KindTool, nil
	case "resource":
		return KindResource, nil
	case "prompt":
		return KindPrompt, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Dir is the conventional plugin directory name for the kind.
func (k Kind) Dir() string { return string(k) + "s" }

// ToolHandler runs a tool with its raw JSON arguments and returns text content.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// ResourceHandler returns the content of the resource at uri.
type ResourceHandler func(ctx context.Context, uri string) (string, error)

// PromptHandler renders a prompt from its string arguments.
type PromptHandler func(ctx context.Context, args map[string]string) ([]PromptMessage, error)

// PromptMessage is one rendered message of a prompt.
type PromptMessage struct {
	Role string // "user" or "assistant"
	Text string
}

// PromptArgument declares one argument a prompt accepts.
type PromptArgument struct {
	Name        string
	Description string
	Required    bool
	Default     string
}

// Capability is a single registration record.
type Capability struct {
	Name        string
	Kind        Kind
	Title       string
	Description string
	Source      string // where it came from, for logs

	// tools
	Schema *jsonschema.Schema
	Tool   ToolHandler

	// resources
	URI      string
	MIMEType string
	Resource ResourceHandler

	// prompts
	Arguments []PromptArgument
	Prompt    PromptHandler

	resolved *jsonschema.Resolved
}

// Key identifies a capability within the registry.
func (c *Capability) Key() string { return string(c.Kind) + ":" + c.Name }

// ValidateArgs checks raw tool arguments against the declared schema.
// Empty input is treated as an empty object.
func (c *Capability) ValidateArgs(args json.RawMessage) error {
	if c.resolved == nil {
		return nil
	}
	var instance any = map[string]any{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &instance); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}
	if err := c.resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return nil
}

// UserError is an error whose message is safe to show the caller.
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

// UserErrorf formats a caller-visible error.
func UserErrorf(format string, args ...any) error {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// IsUserError reports whether err (or anything it wraps) is a UserError or
// an argument validation failure.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue) || errors.Is(err, ErrInvalidArguments)
}
