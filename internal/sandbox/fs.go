package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grayridge/acphost/internal/common/apperr"
)

// WriteResult is the record every mutating filesystem operation returns
// (spec.md §4.5.2): whether the target was newly created, its size, and
// a before/after content hash so callers can detect no-op writes.
type WriteResult struct {
	Path       string
	Created    bool
	Size       int64
	HashBefore string
	HashAfter  string
}

// DirEntry is one row of a ListDirectory result.
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	ModTime time.Time
	Mime    string
}

// FS performs the actual filesystem mutations and reads the Delegate
// issues once its policy checks pass. It is deliberately policy-free:
// callers are expected to have already run permission and confirmation
// checks against the Ledger.
type FS struct{}

// NewFS constructs an FS.
func NewFS() *FS { return &FS{} }

// ReadTextFile reads path and returns its contents as a string.
func (f *FS) ReadTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperr.New(apperr.FileNotFound, "file not found: "+path)
		}
		return "", apperr.Wrap(apperr.InvalidPath, "failed to read file", err)
	}
	return string(data), nil
}

// WriteTextFile writes content to path, creating parent directories
// implicitly, and returns a WriteResult describing the mutation.
func (f *FS) WriteTextFile(path, content string) (*WriteResult, error) {
	hashBefore := ""
	created := true
	if existing, err := os.ReadFile(path); err == nil {
		hashBefore = sha256Hex(existing)
		created = false
	} else if !os.IsNotExist(err) {
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to stat existing file", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to create parent directories", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to write file", err)
	}

	return &WriteResult{
		Path:       path,
		Created:    created,
		Size:       int64(len(content)),
		HashBefore: hashBefore,
		HashAfter:  sha256Hex([]byte(content)),
	}, nil
}

// DeleteFile removes path, returning FileNotFound if it does not exist.
func (f *FS) DeleteFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return apperr.New(apperr.FileNotFound, "file not found: "+path)
		}
		return apperr.Wrap(apperr.InvalidPath, "failed to stat file", err)
	}
	if err := os.Remove(path); err != nil {
		return apperr.Wrap(apperr.InvalidPath, "failed to delete file", err)
	}
	return nil
}

// MoveFile moves oldPath to newPath, creating newPath's parent
// directories implicitly, and returns a WriteResult for the destination.
func (f *FS) MoveFile(oldPath, newPath string) (*WriteResult, error) {
	info, err := os.Stat(oldPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.FileNotFound, "file not found: "+oldPath)
		}
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to stat source file", err)
	}

	hashBefore := ""
	created := true
	if existing, err := os.ReadFile(newPath); err == nil {
		hashBefore = sha256Hex(existing)
		created = false
	}

	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to create parent directories", err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to move file", err)
	}

	data, err := os.ReadFile(newPath)
	hashAfter := ""
	if err == nil {
		hashAfter = sha256Hex(data)
	}

	return &WriteResult{
		Path:       newPath,
		Created:    created,
		Size:       info.Size(),
		HashBefore: hashBefore,
		HashAfter:  hashAfter,
	}, nil
}

// CreateDirectory makes path and any missing parents.
func (f *FS) CreateDirectory(path string) (*WriteResult, error) {
	_, statErr := os.Stat(path)
	created := os.IsNotExist(statErr)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to create directory", err)
	}
	return &WriteResult{Path: path, Created: created}, nil
}

// ListDirectory lists dir's entries sorted directories-first then by
// case-insensitive name, with size, mtime, and a mime guess per entry.
func (f *FS) ListDirectory(dir string) ([]DirEntry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.New(apperr.DirectoryNotFound, "directory not found: "+dir)
		}
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to stat directory", err)
	}
	if !info.IsDir() {
		return nil, apperr.New(apperr.InvalidPath, dir+" is not a directory")
	}

	raw, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperr.Wrap(apperr.InvalidPath, "failed to list directory", err)
	}

	entries := make([]DirEntry, 0, len(raw))
	for _, e := range raw {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		entry := DirEntry{Name: e.Name(), IsDir: e.IsDir(), ModTime: fi.ModTime()}
		if !e.IsDir() {
			entry.Size = fi.Size()
			entry.Mime = guessMime(e.Name())
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

func guessMime(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return ""
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
