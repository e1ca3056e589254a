package modules

import (
	"time"

	"modloader/core/loader"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature wires the module admin API into the application.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the modules feature.
func NewFeature(ld *loader.Loader, logger *zap.Logger, timeout time.Duration) *Feature {
	svc := NewService(ld, logger, timeout)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "modules"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
