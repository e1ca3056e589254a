// Package combo batches module fetches into combined requests.
//
// Module ids are grouped by package. Each package has a base, an optional
// build filter and charset, and may opt out of combining. A combined request
// lists several manifest paths after the combo prefix:
//
//	https://cdn.example.com/mods/??ui/button.yaml,ui/theme.yaml
//
// Requests are split when they would exceed the configured file count or
// URL length. The Dispatcher runs every request through a Transport, decodes
// the manifests and reports one module.Arrival per request.
package combo
