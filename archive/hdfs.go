// HDFS archival backend (§4.10).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package archive

import (
	"context"
	"io"
	"path"

	"github.com/colinmarc/hdfs/v2"
)

// HDFSBackend uploads archived payloads and metadata under a root
// directory in an HDFS cluster, one file per key.
type HDFSBackend struct {
	client *hdfs.Client
	root   string
}

// NewHDFSBackend builds a backend against an HDFS namenode at addr,
// writing files under root.
func NewHDFSBackend(addr, root string) (*HDFSBackend, error) {
	client, err := hdfs.New(addr)
	if err != nil {
		return nil, err
	}
	return &HDFSBackend{client: client, root: root}, nil
}

func (b *HDFSBackend) Name() string { return "hdfs" }

func (b *HDFSBackend) Upload(_ context.Context, key string, r io.Reader, _ int64) error {
	full := path.Join(b.root, key)
	if err := b.client.MkdirAll(path.Dir(full), 0o755); err != nil {
		return err
	}
	w, err := b.client.Create(full)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
