// Package config holds the daemon's runtime tunables.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package config_test

import (
	"testing"

	"github.com/NVIDIA/aistore/config"
)

func TestDefaultsRoundTripThroughGet(t *testing.T) {
	t.Parallel()
	c := config.Defaults()
	v, err := c.Get("busy_queue_depth")
	if err != nil {
		t.Fatal(err)
	}
	if v != "64" {
		t.Fatalf("expected default busy_queue_depth 64, got %s", v)
	}
}

func TestSetParsesSizeSuffix(t *testing.T) {
	t.Parallel()
	c := config.Defaults()
	if err := c.Set("payload_mem_threshold", "1GiB"); err != nil {
		t.Fatal(err)
	}
	if c.PayloadMemThreshold != 1<<30 {
		t.Fatalf("expected 1GiB = %d, got %d", int64(1)<<30, c.PayloadMemThreshold)
	}
}

func TestSetParsesDuration(t *testing.T) {
	t.Parallel()
	c := config.Defaults()
	if err := c.Set("keepalive_interval", "45s"); err != nil {
		t.Fatal(err)
	}
	v, _ := c.Get("keepalive_interval")
	if v != "45s" {
		t.Fatalf("expected 45s, got %s", v)
	}
}

func TestSetRejectsUnknownKey(t *testing.T) {
	t.Parallel()
	c := config.Defaults()
	if err := c.Set("not_a_real_tunable", "1"); err == nil {
		t.Fatal("expected an error for an unknown tunable")
	}
}

func TestSetRejectsBadValue(t *testing.T) {
	t.Parallel()
	c := config.Defaults()
	if err := c.Set("busy_queue_depth", "not-a-number"); err == nil {
		t.Fatal("expected an error for a malformed integer")
	}
}

func TestLoadAppliesOverridesOverDefaults(t *testing.T) {
	t.Parallel()
	data := []byte(`{
		"payload_mem_threshold": "2MB",
		"require_auth": true,
		"custody_retry_factor": 8
	}`)
	c, err := config.Load(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.PayloadMemThreshold != 2e6 {
		t.Fatalf("expected 2MB = 2000000, got %d", c.PayloadMemThreshold)
	}
	if !c.RequireAuth {
		t.Fatal("expected require_auth=true from file")
	}
	if c.CustodyRetryFactor != 8 {
		t.Fatalf("expected custody_retry_factor=8, got %d", c.CustodyRetryFactor)
	}
	// Untouched fields retain their defaults.
	if c.IdleCloseTime != config.Defaults().IdleCloseTime {
		t.Fatalf("expected idle_close_time to stay at default")
	}
}

func TestLoadEmptyReturnsDefaults(t *testing.T) {
	t.Parallel()
	c, err := config.Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	d := config.Defaults()
	if c.Dump()["sendbuf_len"] != d.Dump()["sendbuf_len"] {
		t.Fatal("expected an empty file to produce defaults")
	}
}

func TestDumpIncludesEveryTunable(t *testing.T) {
	t.Parallel()
	c := config.Defaults()
	dump := c.Dump()
	for _, key := range []string{
		"payload_mem_threshold", "proactive_frag_threshold", "early_deletion",
		"sendbuf_len", "recvbuf_len", "keepalive_interval", "idle_close_time",
		"busy_queue_depth", "block_length", "reactive_frag_enabled",
		"data_timeout", "custody_retry_factor", "require_auth", "archive_compress",
	} {
		if _, ok := dump[key]; !ok {
			t.Fatalf("expected Dump to include %q", key)
		}
	}
}
