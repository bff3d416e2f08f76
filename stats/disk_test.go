/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package stats_test

import (
	"testing"

	"github.com/NVIDIA/aistore/stats"
	"github.com/lufia/iostat"
)

func TestDiskSamplerReportsNothingOnFirstSample(t *testing.T) {
	reported := 0
	s := stats.NewDiskSamplerWithReader(func() ([]*iostat.DriveStats, error) {
		return []*iostat.DriveStats{{Name: "sda", BytesRead: 1000, BytesWritten: 500}}, nil
	}, func(string, float64, float64) { reported++ })

	s.Sample()
	if reported != 0 {
		t.Fatalf("expected no report on the first sample (no baseline yet), got %d", reported)
	}
}

func TestDiskSamplerReportsThroughputOnSecondSample(t *testing.T) {
	calls := 0
	var read, write int64
	first := true
	s := stats.NewDiskSamplerWithReader(func() ([]*iostat.DriveStats, error) {
		if first {
			first = false
			return []*iostat.DriveStats{{Name: "sda", BytesRead: 1000, BytesWritten: 500}}, nil
		}
		return []*iostat.DriveStats{{Name: "sda", BytesRead: 3000, BytesWritten: 1500}}, nil
	}, func(name string, readBps, writeBps float64) {
		calls++
		read, write = int64(readBps), int64(writeBps)
		if name != "sda" {
			t.Errorf("expected drive name sda, got %q", name)
		}
	})

	s.Sample()
	s.Sample()

	if calls != 1 {
		t.Fatalf("expected exactly one report across two samples, got %d", calls)
	}
	if read <= 0 || write <= 0 {
		t.Fatalf("expected positive throughput, got read=%d write=%d", read, write)
	}
}

func TestDiskSamplerDropsDrivesMissingFromThePreviousSample(t *testing.T) {
	calls := 0
	first := true
	s := stats.NewDiskSamplerWithReader(func() ([]*iostat.DriveStats, error) {
		if first {
			first = false
			return []*iostat.DriveStats{{Name: "sda", BytesRead: 1000}}, nil
		}
		return []*iostat.DriveStats{{Name: "sdb", BytesRead: 2000}}, nil
	}, func(string, float64, float64) { calls++ })

	s.Sample()
	s.Sample()

	if calls != 0 {
		t.Fatalf("expected no report for a drive absent from the prior sample, got %d", calls)
	}
}
