// S3 archival backend (§4.10), grounded on the teacher's go.mod choice of
// the AWS SDK v2 with the s3/manager uploader for large-object upload.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"context"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Backend uploads archived payloads and metadata to a single S3 bucket
// via the s3manager uploader, which handles multipart upload for payloads
// larger than its part size without the caller having to chunk anything.
type S3Backend struct {
	bucket   string
	uploader *manager.Uploader
}

// NewS3Backend builds a backend against bucket using the default AWS
// credential chain (environment, shared config, IAM role), matching
// awsconfig.LoadDefaultConfig's standard resolution order.
func NewS3Backend(ctx context.Context, bucket string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Backend{bucket: bucket, uploader: manager.NewUploader(client)}, nil
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) Upload(ctx context.Context, key string, r io.Reader, _ int64) error {
	_, err := b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: &b.bucket,
		Key:    &key,
		Body:   r,
	})
	return err
}
