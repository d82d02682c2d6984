// internal/commands/health_test.go
package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragline/ragline/internal/appconfig"
)

func TestRunHealthReturnsErrorWhenUnhealthy(t *testing.T) {
	cfg := &appconfig.Config{
		Backend:    "ollama",
		BackendURL: "http://127.0.0.1:1",
		IndexDir:   t.TempDir(),
	}
	appconfig.ApplyDefaults(cfg)

	var out bytes.Buffer
	err := runHealth(context.Background(), cfg, &out)

	// An unhealthy system surfaces as an error, not an in-process exit.
	require.ErrorIs(t, err, errUnhealthy)
	assert.Contains(t, out.String(), "backend ollama")
	assert.Contains(t, out.String(), "index:")
	assert.Contains(t, out.String(), "total_requests")
}
