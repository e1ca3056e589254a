package transport

import (
	"context"

	"modloader/core/combo"
	"modloader/core/storage"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Storage reads manifests from an S3 compatible bucket. Reads of the same
// key that overlap share one GetObject call.
type Storage struct {
	client storage.Client
	bucket string
	limit  int
	group  singleflight.Group
}

// NewStorage creates a bucket transport reading at most limit objects at
// once per request.
func NewStorage(client storage.Client, bucket string, limit int) *Storage {
	if limit <= 0 {
		limit = 8
	}
	return &Storage{client: client, bucket: bucket, limit: limit}
}

// Fetch reads every path of req from base/path in the bucket.
func (s *Storage) Fetch(ctx context.Context, req combo.Request) ([]combo.Payload, error) {
	keys := req.Keys()
	payloads := make([]combo.Payload, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for i, key := range keys {
		g.Go(func() error {
			// The shared read outlives any one caller; each caller
			// stops waiting when its own context ends.
			ch := s.group.DoChan(key, func() (any, error) {
				return storage.ReadObject(context.WithoutCancel(gctx), s.client, s.bucket, key)
			})
			select {
			case res := <-ch:
				if res.Err != nil {
					return res.Err
				}
				payloads[i] = combo.Payload{Path: req.Paths[i], Body: res.Val.([]byte)}
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return payloads, nil
}
