// Package utils provides loose conversions for values decoded from YAML,
// TOML and JSON manifests, where the same field may arrive as int, int64,
// float64 or string depending on the codec.
package utils
