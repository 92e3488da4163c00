// Package local stores receipt images on the device filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vbonduro/shopsync/internal/domain"
)

// formats pairs each accepted content type with the extension it is stored
// under. The extension is how Get recovers the type.
var formats = []struct {
	mime string
	ext  string
}{
	{"image/jpeg", ".jpg"},
	{"image/png", ".png"},
	{"image/gif", ".gif"},
	{"image/webp", ".webp"},
	{"application/pdf", ".pdf"},
}

// ImageStore keeps one file per image under a single directory. Keys are
// plain file names.
type ImageStore struct {
	root string
}

func New(basePath string) (*ImageStore, error) {
	root, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid image directory: %w", err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{root: root}, nil
}

// Save writes r to a temporary file and renames it into place, so a reader
// never observes a partial image.
func (s *ImageStore) Save(_ context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	ext, ok := extensionFor(mimeType)
	if !ok {
		return "", fmt.Errorf("%w: unsupported image type %q", domain.ErrBadRequest, mimeType)
	}
	key := prefix + "_" + uuid.NewString() + ext

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.root, key)); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	committed = true
	return key, nil
}

func (s *ImageStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", fmt.Errorf("%w: image %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	return f, mimeFor(key), nil
}

func (s *ImageStore) Delete(_ context.Context, key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: image %s", domain.ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// resolve maps a key to a path directly inside root. Keys containing
// separators or dot segments are rejected.
func (s *ImageStore) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("%w: invalid storage key", domain.ErrBadRequest)
	}
	return filepath.Join(s.root, key), nil
}

func extensionFor(mimeType string) (string, bool) {
	for _, f := range formats {
		if f.mime == mimeType {
			return f.ext, true
		}
	}
	return "", false
}

func mimeFor(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	for _, f := range formats {
		if f.ext == ext {
			return f.mime
		}
	}
	return "application/octet-stream"
}
