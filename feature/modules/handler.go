package modules

import (
	"context"
	"errors"

	"modloader/core/loader"
	"modloader/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the module registry.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the module routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/modules")
	group.Get("/", h.HandleList)
	group.Post("/use", h.HandleUse)
	group.Get("/*", h.HandleGet)
	group.Delete("/*", h.HandleUndef)
}

// UseRequest is the body of POST /modules/use.
type UseRequest struct {
	IDs []string `json:"ids"`
}

// HandleList returns every known module.
// @Summary List Modules
// @Description Returns a snapshot of every module the registry knows, sorted by id.
// @Tags modules
// @Produce json
// @Success 200 {object} map[string]interface{} "Module Snapshot"
// @Security ApiKeyAuth
// @Router /modules [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"modules": h.service.List()})
}

// HandleGet returns one module.
// @Summary Get Module
// @Description Returns status, requires and failure reason of one module.
// @Tags modules
// @Produce json
// @Param id path string true "Module id, may contain slashes"
// @Success 200 {object} map[string]interface{} "Module Info"
// @Failure 404 {object} map[string]string "Module Not Found"
// @Security ApiKeyAuth
// @Router /modules/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	id := c.Params("*")
	info, ok := h.service.Get(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "module not found", "id": id})
	}
	return c.JSON(info)
}

// HandleUse loads the requested modules and returns their exports.
// @Summary Use Modules
// @Description Resolves, fetches and initializes the requested modules and their dependencies.
// @Tags modules
// @Accept json
// @Produce json
// @Param request body UseRequest true "Module ids"
// @Success 200 {object} map[string]interface{} "Exports by id"
// @Failure 400 {object} map[string]string "Invalid Body"
// @Failure 422 {object} map[string]interface{} "Load Failures"
// @Failure 503 {object} map[string]string "Loader Closed"
// @Failure 504 {object} map[string]string "Timed Out"
// @Security ApiKeyAuth
// @Router /modules/use [post]
func (h *Handler) HandleUse(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req UseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	exports, err := h.service.Use(c.UserContext(), req.IDs)
	if err != nil {
		var loadErr *loader.LoadError
		switch {
		case errors.As(err, &loadErr):
			l.Warn("Use failed", zap.Strings("failed", loadErr.IDs()), zap.Error(err))
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error":    err.Error(),
				"action":   loadErr.Action,
				"failures": failures(loadErr.Failures),
			})
		case errors.Is(err, context.DeadlineExceeded):
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, loader.ErrClosed):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
		default:
			l.Error("Use failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.JSON(fiber.Map{"exports": exports})
}

// HandleUndef invalidates a module.
// @Summary Undefine Module
// @Description Resets a module, its dependencies and its initialized dependents so the next use fetches them again.
// @Tags modules
// @Produce json
// @Param id path string true "Module id, may contain slashes"
// @Success 200 {object} map[string]interface{} "Invalidated ids"
// @Security ApiKeyAuth
// @Router /modules/{id} [delete]
func (h *Handler) HandleUndef(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	id := c.Params("*")

	invalidated := h.service.Undef(id)
	l.Info("Module invalidated", zap.String("module", id), zap.Strings("invalidated", invalidated))
	return c.JSON(fiber.Map{"invalidated": invalidated})
}

func failures(in []loader.Failure) []fiber.Map {
	out := make([]fiber.Map, len(in))
	for i, f := range in {
		entry := fiber.Map{"id": f.ID, "status": f.Status, "kind": f.Kind}
		if f.Err != nil {
			entry["error"] = f.Err.Error()
		}
		out[i] = entry
	}
	return out
}
