package resources

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/mcp-scaffold/internal/logging"
	"github.com/2389/mcp-scaffold/internal/registry"
)

type fakeInfo struct{ auth bool }

func (fakeInfo) Name() string        { return "template-mcp" }
func (fakeInfo) Version() string     { return "1.2.3" }
func (fakeInfo) Port() int           { return 8150 }
func (f fakeInfo) AuthEnabled() bool { return f.auth }

func TestServerInfo(t *testing.T) {
	out := ServerInfo(fakeInfo{auth: true})
	assert.Contains(t, out, "Name: template-mcp")
	assert.Contains(t, out, "Version: 1.2.3")
	assert.Contains(t, out, "Port: 8150")
	assert.Contains(t, out, "Authentication: Enabled")
	assert.Contains(t, out, "Status: Running")

	assert.Contains(t, ServerInfo(fakeInfo{}), "Authentication: Disabled")
}

func TestServerInfoSource(t *testing.T) {
	b := registry.NewBuilder(logging.Discard())
	require.NoError(t, ServerInfoSource(fakeInfo{}).Register(b))

	c, ok := b.Build().LookupURI(ServerInfoURI)
	require.True(t, ok)
	assert.Equal(t, "text/plain", c.MIMEType)

	body, err := c.Resource(context.Background(), ServerInfoURI)
	require.NoError(t, err)
	assert.Contains(t, body, "Server Information")
}
