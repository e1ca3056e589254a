// Package transport implements combo.Transport over HTTP, an S3 compatible
// bucket, a local directory and a SQL table.
//
// # Transports
//
//   - HTTP: one GET per request; combined requests return a YAML stream.
//   - Storage: reads each manifest key concurrently through MinIO.
//   - File: reads each manifest from disk.
//   - Catalog: loads the manifests of a request from module_manifests in
//     one query.
//
// Select one with New using the configured kind.
package transport
