package repository

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by every DocumentSource when no document exists for
// a key. Callers use it to suggest uploading the document instead.
var ErrNotFound = errors.New("repository: document not found")

// DocumentSource looks up patient documents by key.
type DocumentSource interface {
	GetDocument(ctx context.Context, key string) (string, error)
}

// normalizeKey trims key and rejects anything that could escape a flat
// namespace (path separators, parent references).
func normalizeKey(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" || key == "." || key == ".." {
		return "", false
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") || strings.ContainsRune(key, 0) {
		return "", false
	}
	return key, true
}
