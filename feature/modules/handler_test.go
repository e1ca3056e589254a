package modules

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"modloader/core/loader"
	"modloader/core/module"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// emptyDispatcher answers every fetch without definitions.
var emptyDispatcher = loader.DispatcherFunc(func(_ context.Context, ids []string, deliver func(module.Arrival)) {
	go deliver(module.Arrival{Modules: ids})
})

func setupTestApp(t *testing.T) (*fiber.App, *loader.Loader) {
	ld := loader.New(module.NewRegistry(), emptyDispatcher, loader.WithConfig(loader.Config{RoundTimeout: time.Second}))
	t.Cleanup(func() { _ = ld.Close() })

	require.NoError(t, ld.Define(module.Definition{
		ID: "app/config",
		Factory: func(module.Runtime, []any) (any, error) {
			return map[string]any{"port": 8080}, nil
		},
	}))
	require.NoError(t, ld.Define(module.Definition{
		ID:       "app/server",
		Requires: []string{"./config"},
		Factory: func(_ module.Runtime, deps []any) (any, error) {
			cfg := deps[0].(map[string]any)
			return map[string]any{"listen": cfg["port"]}, nil
		},
	}))

	app := fiber.New()
	feature := NewFeature(ld, zap.NewNop(), 5*time.Second)
	require.NoError(t, feature.Load(app))
	return app, ld
}

func decode(t *testing.T, app *fiber.App, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandleUse(t *testing.T) {
	app, _ := setupTestApp(t)

	t.Run("Success", func(t *testing.T) {
		status, body := decode(t, app, "POST", "/modules/use", `{"ids": ["app/server"]}`)
		require.Equal(t, fiber.StatusOK, status)

		exports := body["exports"].(map[string]any)
		server := exports["app/server"].(map[string]any)
		assert.Equal(t, float64(8080), server["listen"])
	})

	t.Run("Failure", func(t *testing.T) {
		status, body := decode(t, app, "POST", "/modules/use", `{"ids": ["app/missing"]}`)
		require.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, "load", body["action"])

		failures := body["failures"].([]any)
		require.Len(t, failures, 1)
		first := failures[0].(map[string]any)
		assert.Equal(t, "app/missing", first["id"])
		assert.Equal(t, "stuck", first["kind"])
		assert.Equal(t, "error", first["status"])
	})

	t.Run("BadBody", func(t *testing.T) {
		status, _ := decode(t, app, "POST", "/modules/use", `{"ids":`)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})
}

func TestHandleListAndGet(t *testing.T) {
	app, ld := setupTestApp(t)
	_, err := ld.Await(context.Background(), "app/server")
	require.NoError(t, err)

	status, body := decode(t, app, "GET", "/modules", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["modules"], 2)

	status, body = decode(t, app, "GET", "/modules/app/server", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "initialized", body["status"])
	assert.Equal(t, []any{"app/config"}, body["requires"])

	status, _ = decode(t, app, "GET", "/modules/app/none", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandleUndef(t *testing.T) {
	app, ld := setupTestApp(t)
	_, err := ld.Await(context.Background(), "app/server")
	require.NoError(t, err)

	status, body := decode(t, app, "DELETE", "/modules/app/config", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.ElementsMatch(t, []any{"app/config", "app/server"}, body["invalidated"])

	info, ok := ld.Status("app/server")
	require.True(t, ok)
	assert.Equal(t, module.Undefined, info.Status)
	assert.True(t, info.Defined)
}

func TestFeature(t *testing.T) {
	ld := loader.New(module.NewRegistry(), emptyDispatcher)
	defer ld.Close()

	f := NewFeature(ld, zap.NewNop(), 0)
	assert.Equal(t, "modules", f.Name())
	assert.True(t, f.IsEnabled())
	assert.NoError(t, f.Load(fiber.New()))
}
