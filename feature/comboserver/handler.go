package comboserver

import (
	"errors"
	"net/url"
	"os"
	"path"
	"strings"

	"modloader/core/logger"
	"modloader/core/storage"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler serves combined and single manifests.
type Handler struct {
	service *Service
	mount   string
}

// NewHandler creates a handler serving below mount.
func NewHandler(service *Service, mount string) *Handler {
	return &Handler{service: service, mount: strings.TrimSuffix(mount, "/")}
}

// RegisterRoutes registers the combo routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get(h.mount+"/*", h.HandleCombo)
}

// HandleCombo serves <mount>/<base>/??a.yaml,b.yaml as one YAML stream and
// <mount>/<path> as the raw file.
// @Summary Combined Manifests
// @Description Serves "??a.yaml,b.yaml" lists as one YAML stream. A path without the combo prefix returns the stored file.
// @Tags combo
// @Produce plain
// @Param path path string true "Base path, combo prefix and comma separated files"
// @Param t query string false "Cache buster tag"
// @Success 200 {string} string "Manifest Stream"
// @Failure 400 {object} map[string]string "Invalid Path"
// @Failure 404 {object} map[string]string "Missing Manifest"
// @Failure 500 {object} map[string]string "Transport Error"
// @Router /combo/{path} [get]
func (h *Handler) HandleCombo(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	prefix := h.service.planner.Config().Prefix

	raw, err := url.PathUnescape(strings.TrimPrefix(c.OriginalURL(), h.mount))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if i := strings.Index(raw, prefix); i >= 0 {
		base := raw[:i]
		list := raw[i+len(prefix):]
		if j := strings.Index(list, "?"); j >= 0 {
			list = list[:j]
		}

		files, err := h.service.Split(list)
		if err != nil {
			return h.fail(c, l, err)
		}
		body, err := h.service.Combine(c.Context(), base, files)
		if err != nil {
			return h.fail(c, l, err)
		}
		l.Debug("Served combo", zap.String("base", base), zap.Strings("files", files))
		c.Set(fiber.HeaderContentType, "application/yaml; charset=utf-8")
		return c.Send(body)
	}

	file, err := url.PathUnescape(c.Params("*"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	body, err := h.service.File(c.Context(), ".", file)
	if err != nil {
		return h.fail(c, l, err)
	}
	c.Set(fiber.HeaderContentType, contentType(file))
	return c.Send(body)
}

func (h *Handler) fail(c *fiber.Ctx, l *zap.Logger, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, ErrInvalidPath):
		status = fiber.StatusBadRequest
	case errors.Is(err, ErrMissing), errors.Is(err, storage.ErrNotFound), errors.Is(err, os.ErrNotExist):
		status = fiber.StatusNotFound
	}
	if status == fiber.StatusInternalServerError {
		l.Error("Combo request failed", zap.Error(err))
	} else {
		l.Warn("Combo request rejected", zap.Int("status", status), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func contentType(file string) string {
	switch strings.ToLower(path.Ext(file)) {
	case ".json":
		return fiber.MIMEApplicationJSONCharsetUTF8
	case ".toml":
		return "application/toml; charset=utf-8"
	default:
		return "application/yaml; charset=utf-8"
	}
}
