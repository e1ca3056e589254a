package modules

import (
	"context"
	"time"

	"modloader/core/loader"
	"modloader/core/module"

	"go.uber.org/zap"
)

// Service exposes the loader to the admin API.
type Service struct {
	loader  *loader.Loader
	logger  *zap.Logger
	timeout time.Duration
}

// NewService creates a service over ld. timeout bounds one use request; zero
// leaves only the loader's round limits.
func NewService(ld *loader.Loader, logger *zap.Logger, timeout time.Duration) *Service {
	return &Service{loader: ld, logger: logger, timeout: timeout}
}

// List returns every known module.
func (s *Service) List() []module.Info {
	return s.loader.Snapshot()
}

// Get returns one module.
func (s *Service) Get(id string) (module.Info, bool) {
	return s.loader.Status(id)
}

// Use loads ids and returns their exports keyed by normalized id.
func (s *Service) Use(ctx context.Context, ids []string) (map[string]any, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	requested := module.SplitIDs(ids...)
	exports, err := s.loader.Await(ctx, requested...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(requested))
	for i, id := range requested {
		out[id] = exports[i]
	}
	return out, nil
}

// Undef invalidates id and returns the reset ids.
func (s *Service) Undef(id string) []string {
	return s.loader.Undef(id)
}
