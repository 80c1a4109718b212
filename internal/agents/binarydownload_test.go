package agents

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryDownload_BuildURLWithPinnedVersion(t *testing.T) {
	bd := NewBinaryDownload("codex", "Codex", nil, t.TempDir(), GithubReleaseConfig{
		Owner:        "openai",
		Repo:         "codex-acp",
		Version:      "0.5.2",
		AssetPattern: "codex-acp-{target}.tar.gz",
		Targets:      map[string]string{"linux/amd64": "linux-x64"},
	})

	url := bd.buildURL("0.5.2", "linux-x64")
	assert.Equal(t, "https://github.com/openai/codex-acp/releases/download/v0.5.2/codex-acp-linux-x64.tar.gz", url)
}

func TestBinaryDownload_ResolveVersionPassesPinnedVersionThrough(t *testing.T) {
	bd := NewBinaryDownload("codex", "Codex", nil, t.TempDir(), GithubReleaseConfig{
		Owner: "openai", Repo: "codex-acp", Version: "0.5.2",
	})

	version, err := bd.resolveVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.5.2", version)
}

func TestBinaryDownload_ResolveVersionResolvesLatestViaReleasesAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/openai/codex-acp/releases/latest", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v1.4.0"}`))
	}))
	defer server.Close()

	bd := NewBinaryDownload("codex", "Codex", nil, t.TempDir(), GithubReleaseConfig{
		Owner: "openai", Repo: "codex-acp", Version: "latest",
	})
	bd.apiBaseURL = server.URL

	version, err := bd.resolveVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", version)

	// Cached: a second call must not hit the server again.
	server.Close()
	version, err = bd.resolveVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", version)
}

func TestBinaryDownload_ResolveVersionPropagatesReleasesAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	bd := NewBinaryDownload("codex", "Codex", nil, t.TempDir(), GithubReleaseConfig{
		Owner: "openai", Repo: "codex-acp", Version: "latest",
	})
	bd.apiBaseURL = server.URL

	_, err := bd.resolveVersion(context.Background())
	assert.Error(t, err)
}

func TestBinaryDownload_AvailableFalseForUnsupportedPlatform(t *testing.T) {
	bd := NewBinaryDownload("codex", "Codex", nil, t.TempDir(), GithubReleaseConfig{
		Owner: "openai", Repo: "codex-acp", Version: "0.5.2",
		Targets: map[string]string{"plan9/amd64": "plan9-x64"},
	})

	result, err := bd.Available(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Available)
}
