package comboserver

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"modloader/core/combo"
	"modloader/core/manifest"

	"go.uber.org/zap"
)

var (
	// ErrInvalidPath is returned for empty paths and paths leaving the base.
	ErrInvalidPath = errors.New("invalid manifest path")
	// ErrMissing is returned when a requested manifest does not exist.
	ErrMissing = errors.New("manifest not found")
)

// Service reads manifests through a transport and merges them into combo
// responses.
type Service struct {
	transport combo.Transport
	planner   *combo.Planner
	logger    *zap.Logger
}

// NewService creates a combo service. The planner supplies the separator,
// file limit and the path to id mapping.
func NewService(t combo.Transport, planner *combo.Planner, logger *zap.Logger) *Service {
	return &Service{transport: t, planner: planner, logger: logger}
}

// Split parses the file list of a combined URL.
func (s *Service) Split(list string) ([]string, error) {
	cfg := s.planner.Config()
	var files []string
	for _, f := range strings.Split(list, cfg.Sep) {
		if f = strings.TrimSpace(f); f != "" {
			files = append(files, f)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: empty file list", ErrInvalidPath)
	}
	if len(files) > cfg.MaxFileNum {
		return nil, fmt.Errorf("%w: %d files exceed the limit of %d", ErrInvalidPath, len(files), cfg.MaxFileNum)
	}
	return files, nil
}

// Combine reads every file below base and returns them as one YAML stream.
// Single-document manifests without an id get the id of their path.
func (s *Service) Combine(ctx context.Context, base string, files []string) ([]byte, error) {
	payloads, err := s.read(ctx, base, files)
	if err != nil {
		return nil, err
	}

	var docs []manifest.Document
	for _, p := range payloads {
		decoded, err := manifest.Decode(p.Path, p.Body)
		if err != nil {
			return nil, err
		}
		if len(decoded) == 1 && decoded[0].ID == "" {
			id, ok := s.planner.ModuleOf(p.Path)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrInvalidPath, p.Path)
			}
			decoded[0].ID = id
		}
		docs = append(docs, decoded...)
	}
	return manifest.Encode(docs)
}

// File returns the raw content of one manifest below base.
func (s *Service) File(ctx context.Context, base, file string) ([]byte, error) {
	payloads, err := s.read(ctx, base, []string{file})
	if err != nil {
		return nil, err
	}
	return payloads[0].Body, nil
}

func (s *Service) read(ctx context.Context, base string, files []string) ([]combo.Payload, error) {
	base = cleanBase(base)
	for _, f := range files {
		if !valid(path.Join(base, f)) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidPath, f)
		}
	}

	payloads, err := s.transport.Fetch(ctx, combo.Request{Base: base, Paths: files})
	if err != nil {
		return nil, err
	}

	found := make(map[string]combo.Payload, len(payloads))
	for _, p := range payloads {
		found[p.Path] = p
	}
	ordered := make([]combo.Payload, 0, len(files))
	var missing []string
	for _, f := range files {
		p, ok := found[f]
		if !ok {
			missing = append(missing, f)
			continue
		}
		ordered = append(ordered, p)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissing, strings.Join(missing, ", "))
	}
	return ordered, nil
}

func cleanBase(base string) string {
	base = strings.Trim(base, "/")
	if base == "" {
		return "."
	}
	return path.Clean(base)
}

func valid(p string) bool {
	p = path.Clean(p)
	return p != "." && p != ".." && !strings.HasPrefix(p, "../") && !path.IsAbs(p)
}
