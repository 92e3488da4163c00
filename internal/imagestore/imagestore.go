// Package imagestore persists scanned receipt images outside the database.
// The database keeps only the storage key.
package imagestore

import (
	"context"
	"io"
	"net/http"
)

// MaxImageSize bounds a single uploaded receipt image.
const MaxImageSize = 20 * 1024 * 1024

type ImageStore interface {
	Save(ctx context.Context, prefix, mimeType string, r io.Reader) (storageKey string, err error)
	Get(ctx context.Context, storageKey string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, storageKey string) error
}

// acceptedTypes are the net/http.DetectContentType results a receipt may be.
var acceptedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/gif":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// DetectMIME returns the sniffed content type of a receipt scan and whether it
// is an accepted format.
func DetectMIME(data []byte) (string, bool) {
	mime := http.DetectContentType(data)
	if acceptedTypes[mime] {
		return mime, true
	}
	return "", false
}
