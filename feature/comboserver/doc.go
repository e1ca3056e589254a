// Package comboserver serves module manifests the way the combo dispatcher requests
// them.
//
// A combined request lists several files after the combo prefix and is
// answered with one YAML stream holding every document:
//
//	GET /combo/app/??a.yaml,b.yaml
//
// A plain path returns the stored file unchanged. Manifests are read through
// any combo.Transport, so the server can front a bucket, a directory or the
// SQL catalog.
package comboserver
