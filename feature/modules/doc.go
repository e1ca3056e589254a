// Package modules exposes the loader's registry over HTTP.
//
// # Routes
//
//   - GET /modules: every known module with its status.
//   - GET /modules/<id>: one module.
//   - POST /modules/use: body {"ids": ["a", "b"]}; loads the modules and
//     returns their exports, or 422 with the failed modules.
//   - DELETE /modules/<id>: invalidates the module and what depends on it.
package modules
