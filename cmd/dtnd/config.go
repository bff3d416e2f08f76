// Startup config: the plaintext bootstrap file read once before any
// durable table exists (fname.PlaintextInitialConfig, §2 "startup config
// processing"), distinct from config.Tunables which is loaded afterward
// and mutable at runtime through `param set`.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/NVIDIA/aistore/cmn/fname"
	"github.com/NVIDIA/aistore/config"
	jsoniter "github.com/json-iterator/go"
)

// linkConfig describes one statically configured next hop (`link add`,
// §6), present in the bootstrap file so a daemon has routes the moment it
// starts rather than waiting on an admin session or discovery driver.
type linkConfig struct {
	Name    string `json:"name"`
	Type    string `json:"type"`    // alwayson, ondemand, opportunistic, scheduled
	NextHop string `json:"nexthop"` // CL-specific dial target, e.g. "host:port"
	CL      string `json:"cl"`      // convergence layer name: tcpcl, httpcl
	Pattern string `json:"pattern"` // destination EID pattern routed over this link
}

// k8sDiscoveryConfig turns on the optional Kubernetes peer-discovery
// driver (k8sdisc.Watcher); absent when Namespace is empty.
type k8sDiscoveryConfig struct {
	Namespace     string `json:"namespace"`
	LabelSelector string `json:"label_selector"`
	Port          int    `json:"port"`
}

// archiveBackendConfig names one archival backend driver and the bucket
// pattern it archives on bundle free (archive.Manager.Register/SetPolicy,
// §4.10, §6 "archive set").
type archiveBackendConfig struct {
	Pattern  string `json:"pattern"`
	Backend  string `json:"backend"` // s3, azblob, gcs, hdfs
	Bucket   string `json:"bucket"`  // s3/gcs bucket, azblob container, hdfs root dir
	Endpoint string `json:"endpoint"` // azblob connection string, hdfs namenode address
	Compress bool   `json:"compress"`
}

type localConfig struct {
	NodeEID     string `json:"node_eid"`
	APIAddr     string `json:"api_addr"`
	TCPCLAddr   string `json:"tcpcl_addr"`
	MetricsAddr string `json:"metrics_addr"`
	DBDir       string `json:"db_dir"`
	PayloadDir  string `json:"payload_dir"`
	RequireAuth bool   `json:"require_auth"`
	AuthSecret  string `json:"auth_secret"`

	Links            []linkConfig           `json:"links"`
	K8sDiscovery     *k8sDiscoveryConfig    `json:"k8s_discovery"`
	ArchiveBackends  []archiveBackendConfig `json:"archive_backends"`
}

func (lc *localConfig) applyDefaults(dir string) {
	if lc.APIAddr == "" {
		lc.APIAddr = "127.0.0.1:7779"
	}
	if lc.TCPCLAddr == "" {
		lc.TCPCLAddr = ":4556"
	}
	if lc.DBDir == "" {
		lc.DBDir = dir
	}
	if lc.PayloadDir == "" {
		lc.PayloadDir = filepath.Join(dir, "payload")
	}
}

// loadLocalConfig reads and validates the bootstrap file (§6 "Persistent
// state layout": one JSON document per node, read once at startup).
func loadLocalConfig(dir string) (*localConfig, error) {
	path := filepath.Join(dir, fname.PlaintextInitialConfig)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dtnd: read %s: %w", path, err)
	}
	lc := &localConfig{}
	if err := jsoniter.Unmarshal(data, lc); err != nil {
		return nil, fmt.Errorf("dtnd: parse %s: %w", path, err)
	}
	if lc.NodeEID == "" {
		return nil, fmt.Errorf("dtnd: %s: node_eid is required", path)
	}
	lc.applyDefaults(dir)
	return lc, nil
}

// loadTunables loads config.Tunables overrides from the global config file
// (fname.GlobalConfig), falling back to config.Defaults() when absent —
// a node need not ship an override file to start (§6: "Tunables ...
// loaded from a config file at startup").
func loadTunables(dir string) (*config.Tunables, error) {
	path := filepath.Join(dir, fname.GlobalConfig)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.Defaults(), nil
		}
		return nil, fmt.Errorf("dtnd: read %s: %w", path, err)
	}
	t, err := config.Load(data)
	if err != nil {
		return nil, fmt.Errorf("dtnd: parse %s: %w", path, err)
	}
	return t, nil
}
