package comboserver

import (
	"modloader/core/combo"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature wires the combo server into the application.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates the combo feature reading manifests through t.
func NewFeature(t combo.Transport, planner *combo.Planner, mount string, logger *zap.Logger) *Feature {
	svc := NewService(t, planner, logger)
	h := NewHandler(svc, mount)
	return &Feature{service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "combo"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.service.transport != nil
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
