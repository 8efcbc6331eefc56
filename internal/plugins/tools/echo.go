// ABOUTME: Echo tool returns its message, optionally repeated on separate lines
// ABOUTME: Demonstrates argument validation with caller-visible errors

package tools

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/mcp-scaffold/internal/discovery"
	"github.com/2389/mcp-scaffold/internal/registry"
)

// MaxRepeat caps how many times echo repeats a message.
const MaxRepeat = 10

// EchoSource registers the echo tool.
var EchoSource = discovery.NewSource("builtin:tools/echo", registry.KindTool, registerEcho)

func registerEcho(b *registry.Builder) error {
	return b.Register(&registry.Capability{
		Name:        "echo",
		Kind:        registry.KindTool,
		Description: "Echo a message back, optionally repeating it",
		Source:      "builtin:tools/echo",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"message": {Type: "string", Description: "The message to echo"},
				"repeat": {
					Description: "Number of times to repeat (default: 1, max: 10)",
					Default:     json.RawMessage("1"),
				},
			},
			Required: []string{"message"},
		},
		Tool: Echo,
	})
}

// Echo joins repeat copies of message with newlines.
// A missing or non-positive repeat means one copy.
func Echo(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Message *string         `json:"message"`
		Repeat  json.RawMessage `json:"repeat"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return "", registry.UserErrorf("message must be a string")
		}
	}
	if in.Message == nil || *in.Message == "" {
		return "", registry.UserErrorf("message cannot be empty")
	}

	repeat, err := parseRepeat(in.Repeat)
	if err != nil {
		return "", err
	}

	lines := make([]string, repeat)
	for i := range lines {
		lines[i] = *in.Message
	}
	return strings.Join(lines, "\n"), nil
}

func parseRepeat(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 1, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || f != math.Trunc(f) {
		return 0, registry.UserErrorf("repeat must be an integer")
	}
	switch {
	case f > MaxRepeat:
		return 0, registry.UserErrorf("repeat cannot exceed %d", MaxRepeat)
	case f < 1:
		return 1, nil
	}
	return int(f), nil
}
