// ABOUTME: Tests for the startup validation gate
// ABOUTME: Verifies errors accumulate and weak tokens only warn

package validate

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-scaffold/internal/config"
)

func provider(tree map[string]any) *config.Provider {
	return config.NewStaticProvider(config.FromMap(tree), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func settings(port any, name any, authEnabled bool, token string) map[string]any {
	return map[string]any{
		"mcp":    map[string]any{"name": name},
		"server": map[string]any{"port": port},
		"security": map[string]any{"authentication": map[string]any{
			"enabled":      authEnabled,
			"bearer_token": token,
		}},
	}
}

func clearEnv(t *testing.T) {
	t.Setenv("AUTH_ENABLED", "")
	t.Setenv("AUTH_TOKEN", "")
	t.Setenv("MCP_PORT", "")
}

func TestRun_Valid(t *testing.T) {
	clearEnv(t)
	r := Run(provider(settings(8150, "template-mcp", true, strings.Repeat("x", 32))))
	assert.True(t, r.OK())
	assert.NoError(t, r.Err())
	assert.Empty(t, r.Warnings)
}

func TestRun_AccumulatesErrors(t *testing.T) {
	clearEnv(t)
	r := Run(provider(settings(70000, "template-mcp", true, "")))

	require.Len(t, r.Errors, 2)
	err := r.Err()
	assert.ErrorIs(t, err, ErrInvalidPort)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Contains(t, err.Error(), "70000")
}

func TestRun_EverythingWrong(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_PORT", "http")
	r := Run(provider(settings("abc", "", true, "")))

	assert.Len(t, r.Errors, 4)
	assert.ErrorIs(t, r.Err(), ErrInvalidName)
}

func TestRun_WeakTokenWarnsOnly(t *testing.T) {
	clearEnv(t)
	r := Run(provider(settings(8000, "template-mcp", true, "short")))

	assert.True(t, r.OK())
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "use at least 32")
}

func TestRun_UnresolvedTokenPlaceholderIsMissing(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("MCP_TEST_UNSET_TOKEN")
	r := Run(provider(settings(8000, "template-mcp", true, "${MCP_TEST_UNSET_TOKEN}")))

	assert.False(t, r.OK())
	require.Len(t, r.Errors, 1)
	assert.ErrorIs(t, r.Errors[0], ErrMissingToken)
}

func TestRun_ShippedSettingsNeedAuthToken(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("AUTH_TOKEN")
	p, err := config.NewProvider(filepath.Join("..", "..", "configs", "settings.yaml"),
		slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)

	r := Run(p)
	assert.ErrorIs(t, r.Err(), ErrMissingToken)

	t.Setenv("AUTH_TOKEN", strings.Repeat("k", 40))
	assert.True(t, Run(p).OK())
}

func TestRun_AuthDisabledWarns(t *testing.T) {
	clearEnv(t)
	r := Run(provider(settings(8000, "template-mcp", false, "")))
	assert.True(t, r.OK())
	assert.Contains(t, r.Warnings, "authentication is disabled")
}

func TestRun_EnvToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("AUTH_TOKEN", strings.Repeat("k", 40))
	r := Run(provider(settings(8000, "template-mcp", true, "")))
	assert.True(t, r.OK())
}

func TestRun_PortOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("MCP_PORT", "0")
	r := Run(provider(settings(8000, "template-mcp", false, "")))
	require.Len(t, r.Errors, 1)
	assert.ErrorIs(t, r.Errors[0], ErrInvalidPort)
}

func TestRun_StringPortFromPlaceholder(t *testing.T) {
	clearEnv(t)
	r := Run(provider(settings("8150", "template-mcp", false, "")))
	assert.True(t, r.OK())
}

func TestReport_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	r := &Report{Warnings: []string{"w1"}}
	r.errorf(ErrInvalidPort, "bad")
	r.errorf(ErrInvalidName, "worse")
	r.Log(logger)

	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "configuration error"))
	assert.Contains(t, out, "w1")
	assert.Contains(t, out, "validation failed")
}
