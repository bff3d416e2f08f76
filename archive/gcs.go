// Google Cloud Storage archival backend (§4.10).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
)

// GCSBackend uploads archived payloads and metadata to a single GCS
// bucket via the object writer, which streams rather than buffering the
// whole object client-side.
type GCSBackend struct {
	client *storage.Client
	bucket string
}

// NewGCSBackend builds a backend against bucket using application-default
// credentials.
func NewGCSBackend(ctx context.Context, bucket string) (*GCSBackend, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSBackend{client: client, bucket: bucket}, nil
}

func (b *GCSBackend) Name() string { return "gcs" }

func (b *GCSBackend) Upload(ctx context.Context, key string, r io.Reader, _ int64) error {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
