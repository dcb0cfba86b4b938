package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Storage persists attachment bytes at a caller-chosen path. Put overwrites
// on conflict; safe here because paths encode the content hash.
type Storage interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}

// FS is a filesystem-backed Storage rooted at a single directory.
type FS struct {
	root string
}

var _ Storage = (*FS)(nil)

// NewFS creates a filesystem store under root.
func NewFS(root string) (*FS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob storage root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FS{root: root}, nil
}

// Put writes data at path relative to the store root.
func (f *FS) Put(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := filepath.Join(f.root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write blob %s: %w", path, err)
	}
	return nil
}

// Root returns the store's base directory.
func (f *FS) Root() string {
	return f.root
}
