// Archival backend wiring: turns the bootstrap file's archive_backends
// list into registered archive.Backend drivers and matching Policies
// (archive/archive.go, §4.10, §6 "archive set").
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"fmt"

	"github.com/NVIDIA/aistore/archive"
	"github.com/NVIDIA/aistore/eid"
)

func buildArchiveManager(ctx context.Context, backends []archiveBackendConfig, localScheme string) (*archive.Manager, error) {
	m := archive.NewManager()
	registered := make(map[string]bool, len(backends))
	for _, bc := range backends {
		if !registered[bc.Backend] {
			drv, err := newArchiveBackend(ctx, bc)
			if err != nil {
				return nil, fmt.Errorf("dtnd: archive backend %q: %w", bc.Backend, err)
			}
			m.Register(drv)
			registered[bc.Backend] = true
		}
		pattern, err := eid.Parse(bc.Pattern)
		if err != nil {
			pattern, err = eid.New(localScheme, bc.Pattern)
			if err != nil {
				return nil, fmt.Errorf("dtnd: archive pattern %q: %w", bc.Pattern, err)
			}
		}
		m.SetPolicy(archive.Policy{Pattern: pattern, Backend: bc.Backend, Compress: bc.Compress})
	}
	return m, nil
}

func newArchiveBackend(ctx context.Context, bc archiveBackendConfig) (archive.Backend, error) {
	switch bc.Backend {
	case "s3":
		return archive.NewS3Backend(ctx, bc.Bucket)
	case "azblob":
		return archive.NewAzBlobBackend(bc.Endpoint, bc.Bucket)
	case "gcs":
		return archive.NewGCSBackend(ctx, bc.Bucket)
	case "hdfs":
		return archive.NewHDFSBackend(bc.Endpoint, bc.Bucket)
	default:
		return nil, fmt.Errorf("unknown backend %q (want s3, azblob, gcs, or hdfs)", bc.Backend)
	}
}
