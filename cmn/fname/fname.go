// Package fname contains filename constants and common on-disk layout
// conventions for a dtnd node's persistent state (§6 "Persistent state
// layout").
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package fname

const (
	HomeConfigsDir = ".config"
	HomeDTN        = "dtnd"
	HomeCLI        = "dtnadm"
)

const (
	// node config
	PlaintextInitialConfig = "dtn_local.json"
	GlobalConfig           = ".dtn.conf"
	OverrideConfig         = ".dtn.override_config"

	// node identity
	NodeIDFile = ".dtn.node_id"

	// CLI config
	CliConfig = "dtnadm.json"

	// Token
	Token = "auth.token"

	// Markers: per storage root
	MarkersDir           = ".dtn.markers"
	NodeRestartedMarker  = "node_restarted"
	NodeRestartedPrev    = "node_restarted.prev"
	StoreTidyInProgress  = "store_tidy"
)

const (
	// buntdb-backed store table filenames, under Globals.DBDir
	BundlesTable      = "bundles.db"
	RegistrationsTable = "registrations.db"
	GlobalsTable      = "globals.db"

	// Globals keys
	SchemaVersionKey = "schema_version"

	// payload directory: one file per bundle, under Globals.PayloadDir
	PayloadFilePrefix = "bundle_"
	PayloadFileSuffix = ".dat"
)

// PayloadFileName returns the on-disk basename for a bundle's payload file,
// e.g. PayloadFileName(42) == "bundle_42.dat".
func PayloadFileName(bundleID uint64) string {
	return PayloadFilePrefix + itoa(bundleID) + PayloadFileSuffix
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
