package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayridge/acphost/internal/common/logger"
)

func TestTransport_SendAndRecv(t *testing.T) {
	ctx := context.Background()
	tr, err := Spawn(ctx, "sh", []string{"-c", "cat"}, nil, "", logger.Default())
	require.NoError(t, err)
	defer tr.Terminate(time.Second)

	require.NoError(t, tr.Send([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`)))

	line, err := tr.RecvLineTimeout(2 * time.Second)
	require.NoError(t, err)
	assert.Contains(t, string(line), `"method":"ping"`)
}

func TestTransport_RecvTimeout(t *testing.T) {
	ctx := context.Background()
	tr, err := Spawn(ctx, "sh", []string{"-c", "sleep 5"}, nil, "", logger.Default())
	require.NoError(t, err)
	defer tr.Terminate(100 * time.Millisecond)

	_, err = tr.RecvLineTimeout(50 * time.Millisecond)
	require.Error(t, err)
}

func TestTransport_SpawnFailure(t *testing.T) {
	ctx := context.Background()
	_, err := Spawn(ctx, "/nonexistent/not-a-real-binary", nil, nil, "", logger.Default())
	require.Error(t, err)
}

func TestTransport_TerminateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	tr, err := Spawn(ctx, "sh", []string{"-c", "cat"}, nil, "", logger.Default())
	require.NoError(t, err)

	require.NoError(t, tr.Terminate(time.Second))
	require.NoError(t, tr.Terminate(time.Second))
}
