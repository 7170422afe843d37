package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const documentExt = ".txt"

// DirectorySource serves "<key>.txt" files from a local directory.
type DirectorySource struct {
	basePath string
}

func NewDirectorySource(basePath string) (*DirectorySource, error) {
	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("repository: resolve document directory: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("repository: document directory %q: %w", absPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository: document directory %q is not a directory", absPath)
	}
	return &DirectorySource{basePath: absPath}, nil
}

func (d *DirectorySource) GetDocument(_ context.Context, key string) (string, error) {
	key, ok := normalizeKey(key)
	if !ok {
		return "", ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(d.basePath, key+documentExt))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("repository: read document %q: %w", key+documentExt, err)
	}
	return string(data), nil
}

// Keys lists the document keys available in the directory.
func (d *DirectorySource) Keys() ([]string, error) {
	entries, err := os.ReadDir(d.basePath)
	if err != nil {
		return nil, fmt.Errorf("repository: list documents: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != documentExt {
			continue
		}
		keys = append(keys, e.Name()[:len(e.Name())-len(documentExt)])
	}
	return keys, nil
}
