// Package media stores evidence photos and hands out opaque references to
// them. The ledger only ever sees the reference.
package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for unknown references.
var ErrNotFound = errors.New("photo not found")

// Store persists photos.
type Store interface {
	// Put stores data and returns a new reference for it.
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	// Get returns the data and content type stored under ref.
	Get(ctx context.Context, ref string) ([]byte, string, error)
}

// NewRef returns a fresh reference for a photo of the given content type:
// a random UUID plus the type's usual extension.
func NewRef(contentType string) string {
	ext := ".bin"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/png":
		ext = ".png"
	default:
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			ext = exts[0]
		}
	}
	return uuid.NewString() + ext
}

// ValidRef reports whether ref looks like a reference produced by NewRef.
// Anything else is rejected before it reaches a backend, so refs can safely
// be used as object names.
func ValidRef(ref string) bool {
	id, ext, ok := strings.Cut(ref, ".")
	if !ok || ext == "" || strings.ContainsAny(ext, "./\\") {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

func checkRef(ref string) error {
	if !ValidRef(ref) {
		return fmt.Errorf("%w: %q", ErrNotFound, ref)
	}
	return nil
}
