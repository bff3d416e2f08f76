// Package nlog_test
/*
 * Copyright (c) 2026, NVIDIA CORPORATION. All rights reserved.
 */
package nlog_test

import (
	"flag"
	"testing"

	"github.com/NVIDIA/aistore/cmn/nlog"
)

func TestMain(m *testing.M) {
	flag.Parse()
	m.Run()
}

func TestLogNameIncludesRole(t *testing.T) {
	nlog.SetLogDirRole(t.TempDir(), "test")
	if got := nlog.InfoLogName(); got == "" {
		t.Fatal("expected non-empty info log name")
	}
}

func TestInfofDoesNotPanic(t *testing.T) {
	nlog.SetLogDirRole(t.TempDir(), "test")
	nlog.Infof("hello %s", "world")
	nlog.Warningln("careful")
	nlog.Flush()
}
