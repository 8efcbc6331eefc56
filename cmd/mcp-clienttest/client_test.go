// ABOUTME: Runs the client check suite against an in-process MCP server
// ABOUTME: Covers the happy path, rapid mode and rejected credentials

package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-scaffold/internal/auth"
	"github.com/2389/mcp-scaffold/internal/discovery"
	"github.com/2389/mcp-scaffold/internal/logging"
	"github.com/2389/mcp-scaffold/internal/mcp"
	"github.com/2389/mcp-scaffold/internal/plugins"
	"github.com/2389/mcp-scaffold/internal/registry"
)

const testToken = "clienttest-token-0123456789abcdef"

type fakeInfo struct{}

func (fakeInfo) Name() string      { return "client-test" }
func (fakeInfo) Version() string   { return "0.9.0" }
func (fakeInfo) Port() int         { return 8150 }
func (fakeInfo) AuthEnabled() bool { return true }

type fakeAuth struct{}

func (fakeAuth) AuthEnabled() bool { return true }
func (fakeAuth) AuthToken() string { return testToken }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	b := registry.NewBuilder(logging.Discard())
	res := discovery.New(logging.Discard()).DiscoverAll(context.Background(), b, discovery.Options{
		Builtins: plugins.Builtins(fakeInfo{}),
	})
	require.Empty(t, res.Failed)

	srv, err := mcp.NewServer(mcp.Config{
		Name:      "client-test",
		Version:   "0.9.0",
		Registry:  b.Build(),
		Logger:    logging.Discard(),
		Stateless: true,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(auth.Middleware(fakeAuth{}, logging.Discard())(srv))
	t.Cleanup(ts.Close)
	return ts
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSuite_AllChecksPass(t *testing.T) {
	ts := newServer(t)
	var out bytes.Buffer
	c := &Client{URL: ts.URL, Token: testToken, Out: &out}

	r := c.Suite(testContext(t))

	assert.Zero(t, r.Failed, out.String())
	assert.Equal(t, len(checks())+1, r.Passed)
	assert.Contains(t, out.String(), "client-test 0.9.0")
	assert.Contains(t, out.String(), "repeat cannot exceed 10")
}

func TestSuite_WrongTokenFailsToConnect(t *testing.T) {
	ts := newServer(t)
	var out bytes.Buffer
	c := &Client{URL: ts.URL, Token: "not-the-token", Out: &out}

	r := c.Suite(testContext(t))

	assert.Equal(t, Report{Failed: 1}, r)
	assert.Contains(t, out.String(), "connect")
}

func TestRapid_FreshSessions(t *testing.T) {
	ts := newServer(t)
	var out bytes.Buffer
	c := &Client{URL: ts.URL, Token: testToken, Out: &out}

	r := c.Rapid(testContext(t), 4)

	assert.Equal(t, Report{Passed: 4}, r, out.String())
	assert.Contains(t, out.String(), "rapid 4")
}

func TestRequireName(t *testing.T) {
	got, err := requireName([]string{"a", "echo"}, "echo")
	require.NoError(t, err)
	assert.Equal(t, "a, echo", got)

	_, err = requireName([]string{"a"}, "echo")
	assert.ErrorContains(t, err, "echo not found in [a]")
}
