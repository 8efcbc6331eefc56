// ABOUTME: Tests for capability registration, duplicate detection and lookups
// ABOUTME: Also covers tool argument validation against declared schemas

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-scaffold/internal/logging"
)

func testTool(name string) *Capability {
	return &Capability{
		Name:   name,
		Kind:   KindTool,
		Source: "test",
		Schema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"message": {Type: "string"},
				"repeat":  {Type: "integer"},
			},
			Required: []string{"message"},
		},
		Tool: func(ctx context.Context, args json.RawMessage) (string, error) { return "ok", nil },
	}
}

func testResource(name, uri string) *Capability {
	return &Capability{
		Name:     name,
		Kind:     KindResource,
		URI:      uri,
		Resource: func(ctx context.Context, uri string) (string, error) { return "body", nil },
	}
}

func testPrompt(name string) *Capability {
	return &Capability{
		Name: name,
		Kind: KindPrompt,
		Prompt: func(ctx context.Context, args map[string]string) ([]PromptMessage, error) {
			return []PromptMessage{{Role: "user", Text: "hi"}}, nil
		},
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"tool": KindTool, "tools": KindTool, "Resources": KindResource, " prompt ": KindPrompt,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseKind("widget")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "tools", KindTool.Dir())
}

func TestRegister_DuplicateRejected(t *testing.T) {
	b := NewBuilder(logging.Discard())
	require.NoError(t, b.Register(testTool("echo")))

	err := b.Register(testTool("echo"))
	require.ErrorIs(t, err, ErrDuplicateCapability)
	assert.Contains(t, err.Error(), "echo")

	// same name under a different kind is a different capability
	require.NoError(t, b.Register(testPrompt("echo")))
	assert.Equal(t, 2, b.Len())
}

func TestRegister_DuplicateResourceURI(t *testing.T) {
	b := NewBuilder(logging.Discard())
	require.NoError(t, b.Register(testResource("a", "info://server")))
	err := b.Register(testResource("b", "info://server"))
	assert.ErrorIs(t, err, ErrDuplicateCapability)
}

func TestRegister_InvalidRecords(t *testing.T) {
	noSchema := testTool("x")
	noSchema.Schema = nil
	arraySchema := testTool("y")
	arraySchema.Schema = &jsonschema.Schema{Type: "array"}
	noHandler := testTool("z")
	noHandler.Tool = nil
	noURI := testResource("r", "")
	noPromptHandler := testPrompt("p")
	noPromptHandler.Prompt = nil

	tests := []struct {
		name string
		cap  *Capability
		want error
	}{
		{"nil", nil, ErrInvalidCapability},
		{"empty name", &Capability{Kind: KindTool}, ErrInvalidCapability},
		{"unknown kind", &Capability{Name: "w", Kind: "widget"}, ErrUnknownKind},
		{"tool without schema", noSchema, ErrInvalidCapability},
		{"tool with array schema", arraySchema, ErrInvalidCapability},
		{"tool without handler", noHandler, ErrInvalidCapability},
		{"resource without uri", noURI, ErrInvalidCapability},
		{"prompt without handler", noPromptHandler, ErrInvalidCapability},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(logging.Discard())
			assert.ErrorIs(t, b.Register(tt.cap), tt.want)
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestBuild_FreezesAndSorts(t *testing.T) {
	b := NewBuilder(logging.Discard())
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, b.Register(testTool(name)))
	}
	require.NoError(t, b.Register(testResource("info", "info://server")))
	require.NoError(t, b.Register(testPrompt("code_review")))

	r := b.Build()
	assert.ErrorIs(t, b.Register(testTool("late")), ErrRegistryFinalized)

	assert.Equal(t, 5, r.Len())
	assert.Equal(t, 3, r.Count(KindTool))
	assert.Equal(t, 1, r.Count(KindResource))

	tools := r.List(KindTool)
	require.Len(t, tools, 3)
	assert.Equal(t, "alpha", tools[0].Name)
	assert.Equal(t, "zeta", tools[2].Name)

	// List hands out a copy
	tools[0] = nil
	assert.NotNil(t, r.List(KindTool)[0])

	c, ok := r.Lookup(KindTool, "mid")
	require.True(t, ok)
	assert.Equal(t, "mid", c.Name)

	_, ok = r.Lookup(KindPrompt, "mid")
	assert.False(t, ok)

	res, ok := r.LookupURI("info://server")
	require.True(t, ok)
	assert.Equal(t, "info", res.Name)
}

func TestRegister_Concurrent(t *testing.T) {
	b := NewBuilder(logging.Discard())

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				errs <- b.Register(testTool(fmt.Sprintf("tool-%d", n)))
			}(i)
		}
	}
	wg.Wait()
	close(errs)

	var dupes int
	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrDuplicateCapability)
			dupes++
		}
	}
	assert.Equal(t, 20, dupes)
	assert.Equal(t, 20, b.Len())
}

func TestValidateArgs(t *testing.T) {
	b := NewBuilder(logging.Discard())
	c := testTool("echo")
	require.NoError(t, b.Register(c))

	assert.NoError(t, c.ValidateArgs(json.RawMessage(`{"message":"Hi","repeat":3}`)))

	err := c.ValidateArgs(json.RawMessage(`{"message":"Hi","repeat":"three"}`))
	require.ErrorIs(t, err, ErrInvalidArguments)
	assert.Contains(t, err.Error(), "integer")
	assert.True(t, IsUserError(err))

	assert.ErrorIs(t, c.ValidateArgs(nil), ErrInvalidArguments, "message is required")
	assert.ErrorIs(t, c.ValidateArgs(json.RawMessage(`{bad`)), ErrInvalidArguments)
}

func TestUserError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", UserErrorf("repeat cannot exceed %d", 10))
	assert.True(t, IsUserError(err))
	assert.Contains(t, err.Error(), "cannot exceed 10")
	assert.False(t, IsUserError(fmt.Errorf("boom")))
}
