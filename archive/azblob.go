// Azure Blob archival backend (§4.10).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzBlobBackend uploads archived payloads and metadata to a single Azure
// Storage container, one blob per key, via UploadStream so the payload
// never has to be buffered into a single []byte on the client's side
// beyond what the caller already holds.
type AzBlobBackend struct {
	client    *azblob.Client
	container string
}

// NewAzBlobBackend builds a backend against container using a storage
// account connection string (the simplest of azblob's supported auth
// modes; shared-key and AAD credentials can replace it without changing
// the Backend interface).
func NewAzBlobBackend(connString, container string) (*AzBlobBackend, error) {
	client, err := azblob.NewClientFromConnectionString(connString, nil)
	if err != nil {
		return nil, err
	}
	return &AzBlobBackend{client: client, container: container}, nil
}

func (b *AzBlobBackend) Name() string { return "azblob" }

func (b *AzBlobBackend) Upload(ctx context.Context, key string, r io.Reader, _ int64) error {
	_, err := b.client.UploadStream(ctx, b.container, key, r, nil)
	return err
}
