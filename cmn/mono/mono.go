//go:build !mono

// Package mono provides low-level monotonic time
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package mono

import "time"

// start is the process-start reference for the portable NanoTime.
var start = time.Now()

// NanoTime returns a monotonic-clock reading in nanoseconds. The portable
// fallback (this file) returns time.Since(start), which subtracts the
// monotonic clock readings carried by the two time.Now() values; the `mono`
// build tag switches to a direct runtime.nanotime linkname (see
// fast_nanotime.go) when the extra call overhead matters.
func NanoTime() int64 { return int64(time.Since(start)) }

// Since returns the elapsed nanoseconds since a prior NanoTime() reading.
func Since(start int64) int64 { return NanoTime() - start }

// SinceDur is Since expressed as a time.Duration.
func SinceDur(start int64) time.Duration { return time.Duration(Since(start)) }
