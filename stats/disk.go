// Package stats samples per-disk I/O throughput as an ambient health
// signal (§4.11 expansion), feeding the same daemon status surface as
// node resource pressure (k8sdisc.Watcher.reportNodePressure).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"sync"
	"time"

	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/lufia/iostat"
)

// DiskSampler periodically reads per-drive I/O counters and reports
// bytes/sec throughput since the previous sample. A single drive
// momentarily disappearing from the list (e.g. a removable device) is not
// an error; it is simply dropped from the next delta until it reappears.
type DiskSampler struct {
	mtx  sync.Mutex
	prev map[string]iostat.DriveStats
	last time.Time

	read   func() ([]*iostat.DriveStats, error)
	report func(name string, readBps, writeBps float64)
}

// NewDiskSampler builds a sampler against the local OS's drives, invoking
// report on every Sample call with the per-drive throughput computed since
// the prior sample.
func NewDiskSampler(report func(name string, readBps, writeBps float64)) *DiskSampler {
	return newDiskSampler(iostat.ReadDriveStats, report)
}

// NewDiskSamplerWithReader builds a sampler against a caller-supplied
// reader, bypassing the real OS iostat call; used by tests.
func NewDiskSamplerWithReader(read func() ([]*iostat.DriveStats, error), report func(name string, readBps, writeBps float64)) *DiskSampler {
	return newDiskSampler(read, report)
}

func newDiskSampler(read func() ([]*iostat.DriveStats, error), report func(name string, readBps, writeBps float64)) *DiskSampler {
	return &DiskSampler{read: read, report: report}
}

// Sample reads the current drive stats and reports throughput deltas
// against the previous call. The first call after construction only seeds
// the baseline; it reports nothing, since there is no prior sample to
// diff against.
func (s *DiskSampler) Sample() {
	drives, err := s.read()
	if err != nil {
		nlog.Warningf("stats: disk sample failed: %v", err)
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	now := time.Now()
	elapsed := now.Sub(s.last).Seconds()
	hasPrev := s.prev != nil && elapsed > 0

	cur := make(map[string]iostat.DriveStats, len(drives))
	for _, d := range drives {
		cur[d.Name] = *d
		if !hasPrev {
			continue
		}
		p, ok := s.prev[d.Name]
		if !ok {
			continue
		}
		readBps := float64(d.BytesRead-p.BytesRead) / elapsed
		writeBps := float64(d.BytesWritten-p.BytesWritten) / elapsed
		s.report(d.Name, readBps, writeBps)
	}
	s.prev = cur
	s.last = now
}
