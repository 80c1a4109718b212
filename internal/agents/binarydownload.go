package agents

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/oauth2"
)

// GithubReleaseConfig configures a GitHub release tarball download, the
// same shape a GitHub-release-backed LSP/tool installer uses elsewhere in
// this codebase for on-demand binary fetches.
type GithubReleaseConfig struct {
	Owner        string
	Repo         string
	Version      string // e.g. "0.5.2", or "latest" to resolve via the releases API
	AssetPattern string // e.g. "codex-acp-{target}.tar.gz"
	BinaryPath   string // relative path inside the tarball, e.g. "codex-acp-{target}/codex-acp"
	Targets      map[string]string
}

// BinaryDownload is the adapter shape for agents distributed as
// platform-specific binaries attached to GitHub releases (Codex's
// acp-bridge style of distribution). It downloads into a per-user
// versioned directory and reuses a cached download across connects.
type BinaryDownload struct {
	id      string
	name    string
	icon    []byte
	dataDir string
	config  GithubReleaseConfig

	// tokenSource, when set, authenticates requests against the GitHub
	// API/CDN to raise unauthenticated rate limits. Optional: downloads
	// from public release assets work without it.
	tokenSource oauth2.TokenSource

	// OverridePath bypasses discovery/download entirely when the operator
	// points the adapter at an already-installed binary.
	OverridePath string

	// resolvedVersion caches the concrete version "latest" resolved to
	// for this process's lifetime, so Available and Command agree on the
	// same install directory without hitting the releases API twice.
	resolvedVersion string

	// apiBaseURL overrides the GitHub API host, defaulting to the real
	// API when empty; tests point it at an httptest server.
	apiBaseURL string
}

// NewBinaryDownload constructs a binary-download adapter rooted at
// dataDir; installs land under dataDir/agents/<id>/<version>.
func NewBinaryDownload(id, name string, icon []byte, dataDir string, cfg GithubReleaseConfig) *BinaryDownload {
	return &BinaryDownload{id: id, name: name, icon: icon, dataDir: dataDir, config: cfg}
}

// SetTokenSource installs an OAuth2 token source used to authenticate
// GitHub API/download requests.
func (b *BinaryDownload) SetTokenSource(ts oauth2.TokenSource) { b.tokenSource = ts }

func (b *BinaryDownload) Descriptor() Descriptor {
	return Descriptor{ID: b.id, Name: b.name, Icon: b.icon, Builtin: true}
}

func (b *BinaryDownload) Available(ctx context.Context) (*DiscoveryResult, error) {
	if b.OverridePath != "" {
		if _, err := os.Stat(b.OverridePath); err == nil {
			return &DiscoveryResult{Available: true, MatchedPath: b.OverridePath}, nil
		}
	}
	target, err := b.resolveTarget()
	if err != nil {
		return &DiscoveryResult{Available: false}, nil
	}
	version, err := b.resolveVersion(ctx)
	if err != nil {
		return &DiscoveryResult{Available: false}, nil
	}
	binaryPath := b.resolveBinaryPath(version, target)
	if _, err := os.Stat(binaryPath); err == nil {
		return &DiscoveryResult{Available: true, MatchedPath: binaryPath}, nil
	}
	return &DiscoveryResult{Available: false}, nil
}

// Command ensures the versioned binary is downloaded (skipping the
// network round-trip if a prior download is cached) and returns it ready
// to spawn directly, with no wrapper shell.
func (b *BinaryDownload) Command(ctx context.Context, opts LaunchOptions) (Command, []string, error) {
	if b.OverridePath != "" {
		return NewCommand(b.OverridePath), nil, nil
	}

	binaryPath, err := b.ensureInstalled(ctx)
	if err != nil {
		return Command{}, nil, err
	}
	return NewCommand(binaryPath), nil, nil
}

func (b *BinaryDownload) ensureInstalled(ctx context.Context) (string, error) {
	target, err := b.resolveTarget()
	if err != nil {
		return "", err
	}
	version, err := b.resolveVersion(ctx)
	if err != nil {
		return "", err
	}
	binaryPath := b.resolveBinaryPath(version, target)

	if _, err := os.Stat(binaryPath); err == nil {
		return binaryPath, nil
	}

	url := b.buildURL(version, target)
	if err := b.download(ctx, version, url); err != nil {
		return "", fmt.Errorf("failed to download %s: %w", b.name, err)
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return "", fmt.Errorf("binary not found after extraction: %s", binaryPath)
	}
	if err := os.Chmod(binaryPath, 0o755); err != nil {
		return "", fmt.Errorf("failed to make binary executable: %w", err)
	}
	return binaryPath, nil
}

func (b *BinaryDownload) resolveTarget() (string, error) {
	key := runtime.GOOS + "/" + runtime.GOARCH
	target, ok := b.config.Targets[key]
	if !ok {
		return "", fmt.Errorf("unsupported platform for %s: %s", b.name, key)
	}
	return target, nil
}

// resolveVersion returns the configured version unchanged unless it's
// "latest", in which case it queries GitHub's releases API once and
// caches the resolved tag for the adapter's lifetime.
func (b *BinaryDownload) resolveVersion(ctx context.Context) (string, error) {
	if b.config.Version != "latest" {
		return b.config.Version, nil
	}
	if b.resolvedVersion != "" {
		return b.resolvedVersion, nil
	}

	base := b.apiBaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	apiURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", base, b.config.Owner, b.config.Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", err
	}
	b.authorize(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to resolve latest release for %s/%s: %w", b.config.Owner, b.config.Repo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("releases API returned status %d for %s/%s", resp.StatusCode, b.config.Owner, b.config.Repo)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("failed to decode latest release response: %w", err)
	}

	b.resolvedVersion = strings.TrimPrefix(release.TagName, "v")
	return b.resolvedVersion, nil
}

func (b *BinaryDownload) installDir(version string) string {
	return filepath.Join(b.dataDir, "agents", b.id, version)
}

func (b *BinaryDownload) resolveBinaryPath(version, target string) string {
	return filepath.Join(b.installDir(version), b.expandTemplate(b.config.BinaryPath, version, target))
}

func (b *BinaryDownload) buildURL(version, target string) string {
	asset := b.expandTemplate(b.config.AssetPattern, version, target)
	return fmt.Sprintf("https://github.com/%s/%s/releases/download/v%s/%s", b.config.Owner, b.config.Repo, version, asset)
}

func (b *BinaryDownload) authorize(req *http.Request) {
	if b.tokenSource == nil {
		return
	}
	tok, err := b.tokenSource.Token()
	if err == nil {
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}
}

func (b *BinaryDownload) expandTemplate(tmpl, version, target string) string {
	r := strings.NewReplacer("{version}", version, "{target}", target)
	return r.Replace(tmpl)
}

func (b *BinaryDownload) download(ctx context.Context, version, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	b.authorize(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d for %s", resp.StatusCode, url)
	}

	dir := b.installDir(version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create install directory %s: %w", dir, err)
	}
	return extractTarGz(resp.Body, dir)
}

func extractTarGz(r io.Reader, destDir string) error {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return err
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := extractTarEntry(tarReader, header, destDir); err != nil {
			return err
		}
	}
	return nil
}

func extractTarEntry(tr *tar.Reader, header *tar.Header, destDir string) error {
	cleanName, err := sanitizeTarPath(header.Name, destDir)
	if err != nil {
		return err
	}
	target := filepath.Join(destDir, cleanName)

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, os.FileMode(header.Mode))
	case tar.TypeReg:
		return writeFileFromTar(tr, target, os.FileMode(header.Mode))
	case tar.TypeSymlink:
		linkTarget := filepath.Join(filepath.Dir(target), header.Linkname)
		if !strings.HasPrefix(filepath.Clean(linkTarget), filepath.Clean(destDir)) {
			return fmt.Errorf("symlink %s -> %s escapes install directory", header.Name, header.Linkname)
		}
		_ = os.Remove(target)
		return os.Symlink(header.Linkname, target)
	default:
		return nil
	}
}

func writeFileFromTar(tr *tar.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()

	const maxFileSize = 1 << 30
	_, err = io.Copy(f, io.LimitReader(tr, maxFileSize))
	return err
}

func sanitizeTarPath(name, destDir string) (string, error) {
	cleanName := filepath.Clean(name)
	if strings.HasPrefix(cleanName, "..") || strings.HasPrefix(cleanName, "/") {
		return "", fmt.Errorf("invalid tar entry path: %s", name)
	}
	absTarget := filepath.Join(destDir, cleanName)
	if !strings.HasPrefix(absTarget, filepath.Clean(destDir)+string(os.PathSeparator)) && absTarget != filepath.Clean(destDir) {
		return "", fmt.Errorf("tar entry %s would escape destination directory", name)
	}
	return cleanName, nil
}
