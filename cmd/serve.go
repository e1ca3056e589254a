package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"modloader/core/combo"
	"modloader/core/logger"
	"modloader/core/middleware/auth"
	"modloader/core/middleware/rayid"
	"modloader/core/server"
	"modloader/core/transport"
	"modloader/core/watch"
	"modloader/feature/comboserver"
	"modloader/feature/modules"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	_ "modloader/docs/swagger"
)

// @title Module Loader API
// @version 1.0
// @description Combo manifest server and module registry API.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the combo server and the module API",
	Long: `Serves manifests as combined responses under the combo mount, exposes the
module registry under /modules and Prometheus metrics under /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Build configuration, logger and loader
		s, err := bootstrap()
		if err != nil {
			return err
		}
		defer s.close()
		logg := s.log
		zap.ReplaceGlobals(logg)

		// 2. Initialize Fiber App
		app := newServer(s)

		// 3. Watch manifests on disk
		if s.cfg.Server.Watch && s.cfg.Transport.Kind == transport.KindFile {
			w, err := watch.New(s.cfg.Transport.Dir, s.planner.ModuleOf, func(id string) {
				s.loader.Undef(id)
			}, logg)
			if err != nil {
				return err
			}
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()
		}

		// 4. Start Server
		errCh := make(chan error, 1)
		go func() {
			logg.Info("Starting server",
				zap.String("port", s.cfg.Server.Port),
				zap.String("combo", s.cfg.Server.Mount()))
			errCh <- app.Listen(":" + s.cfg.Server.Port)
		}()

		// 5. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		select {
		case <-c:
		case err := <-errCh:
			return err
		}
		logg.Info("Shutting down server...")
		return app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}

// newServer builds the fiber app with middleware and every feature.
func newServer(s *services) *fiber.App {
	logg := s.log
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// RayID must be first to trace everything
	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(logg, c)
		l.Debug("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "modules": len(s.loader.Snapshot())})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Swagger Documentation (Public)
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Manifests are public, the module API is not.
	mount := s.cfg.Server.Mount()
	app.Use(auth.New(auth.Config{
		ApiKey: s.cfg.Server.ApiKey,
		Skip:   []string{"/health", "/metrics"},
		Public: []string{mount + "/", "/swagger/"},
	}))

	mgr := server.NewManager()
	mgr.Register(comboserver.NewFeature(comboSource(s), s.planner, mount, logg))
	mgr.Register(modules.NewFeature(s.loader, logg, s.cfg.Server.UseTimeout))
	if err := mgr.LoadAll(app); err != nil {
		logg.Fatal("Failed to load features", zap.Error(err))
	}
	return app
}

// comboSource is the transport the combo server reads from. An HTTP
// transport would fetch from a combo server, so none is served then.
func comboSource(s *services) combo.Transport {
	if s.cfg.Transport.Kind == transport.KindHTTP {
		return nil
	}
	return s.transport
}
