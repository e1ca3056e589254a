package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modloader/core/combo"
)

// ErrOutsideRoot is returned for paths that leave the transport directory.
var ErrOutsideRoot = errors.New("path outside transport root")

// File reads manifests from a local directory.
type File struct {
	root string
}

// NewFile creates a transport rooted at dir.
func NewFile(dir string) *File {
	return &File{root: dir}
}

// Fetch reads base/path below the root for every path of req.
func (f *File) Fetch(ctx context.Context, req combo.Request) ([]combo.Payload, error) {
	keys := req.Keys()
	payloads := make([]combo.Payload, 0, len(keys))
	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := filepath.FromSlash(key)
		if !filepath.IsLocal(rel) {
			return nil, fmt.Errorf("read %s: %w", key, ErrOutsideRoot)
		}
		body, err := os.ReadFile(filepath.Join(f.root, rel))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		payloads = append(payloads, combo.Payload{Path: req.Paths[i], Body: body})
	}
	return payloads, nil
}
