// Package cos provides common low-level types and utilities shared across
// the dtnd packages.
/*
 * Copyright (c) 2019-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cos

import (
	"strconv"
	"strings"
)

// ParseSize parses a human-readable byte quantity such as "1GB", "512KiB",
// or a bare number of bytes. Used by `param set` (§6) to accept tunables
// like payload_mem_threshold, sendbuf_len, recvbuf_len in either form.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrQuantityBytes
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, errQuantityNonNegative
		}
		return n, nil
	}
	mult := int64(1)
	upper := strings.ToUpper(s)
	suffixes := []struct {
		tag string
		n   int64
	}{
		{"TIB", 1 << 40}, {"GIB", 1 << 30}, {"MIB", 1 << 20}, {"KIB", 1 << 10},
		{"TB", 1e12}, {"GB", 1e9}, {"MB", 1e6}, {"KB", 1e3},
		{"T", 1 << 40}, {"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10},
		{"B", 1},
	}
	for _, suf := range suffixes {
		if strings.HasSuffix(upper, suf.tag) {
			numPart := s[:len(s)-len(suf.tag)]
			f, err := strconv.ParseFloat(strings.TrimSpace(numPart), 64)
			if err != nil {
				return 0, ErrQuantityUsage
			}
			if f < 0 {
				return 0, errQuantityNonNegative
			}
			mult = suf.n
			return int64(f * float64(mult)), nil
		}
	}
	return 0, ErrQuantityUsage
}

// ParsePercent parses a "NN%" quantity, returning NN in (0, 100].
func ParsePercent(s string) (int, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, ErrQuantityUsage
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, ErrQuantityUsage
	}
	if n <= 0 || n > 100 {
		return 0, ErrQuantityPercent
	}
	return n, nil
}
