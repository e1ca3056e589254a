// Package manifest decodes module manifests and turns them into module
// definitions.
//
// A manifest document names a module, the modules it requires and a factory
// kind with its config:
//
//	id: ui/button
//	requires: [./theme, core/dom]
//	factory: object
//	config:
//	  fields:
//	    label: OK
//
// YAML files may hold several documents separated by "---"; combo responses
// use that form. TOML files hold one document or a [[modules]] list, JSON
// files an object or an array.
//
// # Factory Kinds
//
//   - value: exports config.value
//   - object: exports config.fields plus each dependency under its id
//   - sum: adds config.value and the dependencies as integers
//   - concat: joins config.parts and the dependencies with config.sep
//   - alias: re-exports its only dependency
//
// More kinds are added with Catalog.Register.
package manifest
