// Package storage wraps the MinIO client used to keep module manifests in an
// S3 compatible bucket.
//
// The Client interface covers the calls the loader needs and is mocked in
// core/storage/mocks. ReadObject, WriteObject, ListKeys and EnsureBucket
// wrap the raw calls with error translation.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	body, err := storage.ReadObject(ctx, client, cfg.Storage.Bucket, "app/main.yaml")
package storage
