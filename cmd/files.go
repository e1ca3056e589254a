package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"modloader/core/manifest"
)

// manifestFile is a manifest read from disk, keyed by its slash separated
// path relative to the walked directory.
type manifestFile struct {
	Path string
	Body []byte
	Docs []manifest.Document
}

var manifestExts = map[string]struct{}{".yaml": {}, ".yml": {}, ".json": {}, ".toml": {}}

// readManifests walks dir and decodes every manifest file. A file that does
// not decode aborts the walk.
func readManifests(dir string) ([]manifestFile, error) {
	var files []manifestFile
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := manifestExts[strings.ToLower(filepath.Ext(p))]; !ok {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		body, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}
		docs, err := manifest.Decode(rel, body)
		if err != nil {
			return err
		}
		files = append(files, manifestFile{Path: filepath.ToSlash(rel), Body: body, Docs: docs})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
