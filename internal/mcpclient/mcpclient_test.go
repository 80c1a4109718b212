package mcpclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayridge/acphost/internal/common/apperr"
)

func TestProbe_UnknownCommandIsAgentSetupFailed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Probe(ctx, ServerSpec{Name: "bogus", Command: "this-binary-does-not-exist-acphost"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.AgentSetupFailed))
}
