package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayridge/acphost/internal/common/logger"
)

func TestFramer_SkipsBlankLines(t *testing.T) {
	f := NewFramer(strings.NewReader("\n\n{\"a\":1}\n"), logger.Default())
	line, ok := f.Next()
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(line))

	_, ok = f.Next()
	assert.False(t, ok)
}

func TestFramer_DiscardsGarbageLines(t *testing.T) {
	input := "npm WARN deprecated foo@1.0.0\n{\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n"
	f := NewFramer(strings.NewReader(input), logger.Default())

	line, ok := f.Next()
	require.True(t, ok)
	assert.Contains(t, string(line), `"id":1`)

	_, ok = f.Next()
	assert.False(t, ok)
}

func TestFramer_ResyncsMidLinePreamble(t *testing.T) {
	input := "Starting up... {\"jsonrpc\":\"2.0\",\"method\":\"session/update\",\"params\":{}}\n"
	f := NewFramer(strings.NewReader(input), logger.Default())

	line, ok := f.Next()
	require.True(t, ok)
	assert.Contains(t, string(line), `"method":"session/update"`)
}

func TestFramer_ReconstructsMultiLineJSON(t *testing.T) {
	input := "{\"jsonrpc\":\"2.0\",\"id\":1,\n\"result\":{\"ok\":true}}\n"
	f := NewFramer(strings.NewReader(input), logger.Default())

	line, ok := f.Next()
	require.True(t, ok)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{"ok":true}}`, string(line))

	_, ok = f.Next()
	assert.False(t, ok)
}

func TestFramer_MultipleValidLines(t *testing.T) {
	input := "{\"a\":1}\n{\"b\":2}\n{\"c\":3}\n"
	f := NewFramer(strings.NewReader(input), logger.Default())

	var got []string
	for {
		line, ok := f.Next()
		if !ok {
			break
		}
		got = append(got, string(line))
	}
	require.Len(t, got, 3)
	assert.JSONEq(t, `{"a":1}`, got[0])
	assert.JSONEq(t, `{"c":3}`, got[2])
}
