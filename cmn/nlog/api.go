// Package nlog - dtnd's logger public API.
/*
 * Copyright (c) 2023-2026, NVIDIA CORPORATION. All rights reserved.
 */
package nlog

import (
	"time"

	"github.com/NVIDIA/aistore/cmn/mono"
)

func Flush(exit ...bool) {
	ex := len(exit) > 0 && exit[0]
	for _, nl := range nlogs {
		nl.flush(ex)
	}
}

func Since() time.Duration {
	now := mono.NanoTime()
	var oldest time.Duration
	for _, nl := range nlogs {
		if d := nl.since(now); d > oldest {
			oldest = d
		}
	}
	return oldest
}

func OOB() bool { return false } // no out-of-band buffer pool in the trimmed implementation
