// Package bpcodec implements the bundle protocol wire codec.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package bpcodec_test

import (
	"bytes"
	"testing"

	"github.com/NVIDIA/aistore/bpcodec"
	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/eid"
)

func TestSDNVRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 16383, 16384, 1 << 40, ^uint64(0)} {
		enc := bpcodec.EncodeSDNV(nil, v)
		if len(enc) != bpcodec.SDNVLen(v) {
			t.Fatalf("SDNVLen(%d) = %d, encoded length %d", v, bpcodec.SDNVLen(v), len(enc))
		}
		got, n, err := bpcodec.DecodeSDNV(enc)
		if err != nil {
			t.Fatalf("decode %d: %v", v, err)
		}
		if n != len(enc) || got != v {
			t.Fatalf("round trip mismatch for %d: got %d consumed %d", v, got, n)
		}
	}
}

func TestDecodeSDNVShort(t *testing.T) {
	if _, _, err := bpcodec.DecodeSDNV([]byte{0x80, 0x80}); err != bpcodec.ErrSDNVShort {
		t.Fatalf("expected ErrSDNVShort, got %v", err)
	}
}

func mkTestBundle(t *testing.T) *bundle.Bundle {
	src, _ := eid.Parse("dtn://node1/app")
	dst, _ := eid.Parse("dtn://node2/app")
	return &bundle.Bundle{
		Source:   src,
		Dest:     dst,
		ID:       bundle.Identity{Source: src, Timestamp: bundle.Timestamp{Seconds: 42, Sequence: 1}},
		Priority: bundle.Expedited,
		Opts:     bundle.OptCustody | bundle.OptDeliveryReceipt,
		Lifetime: 3600,
		Ext: []bundle.ExtBlock{
			{Type: bundle.ExtMetadata, Data: []byte("hello")},
		},
		Payload: bundle.Payload{Mode: bundle.MEMORY, Length: 5, Received: 5, Mem: []byte("world")},
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	b := mkTestBundle(t)
	wire, err := bpcodec.Format(b)
	if err != nil {
		t.Fatal(err)
	}
	res, err := bpcodec.Parse(wire)
	if err != nil {
		t.Fatal(err)
	}
	got := res.Bundle
	if !got.Source.Equal(b.Source) || !got.Dest.Equal(b.Dest) {
		t.Fatalf("addressing mismatch: %+v", got)
	}
	if got.Priority != b.Priority || got.Opts != b.Opts || got.Lifetime != b.Lifetime {
		t.Fatalf("classification mismatch: %+v", got)
	}
	if got.ID.Timestamp != b.ID.Timestamp {
		t.Fatalf("timestamp mismatch: %+v", got.ID.Timestamp)
	}
	if !bytes.Equal(got.Payload.Mem, b.Payload.Mem) {
		t.Fatalf("payload mismatch: %q", got.Payload.Mem)
	}
	if res.Consumed != len(wire) {
		t.Fatalf("consumed %d, want %d", res.Consumed, len(wire))
	}
	if len(got.Ext) != 1 || string(got.Ext[0].Data) != "hello" {
		t.Fatalf("extension block not round-tripped: %+v", got.Ext)
	}
}

func TestParseBadVersion(t *testing.T) {
	b := mkTestBundle(t)
	wire, _ := bpcodec.Format(b)
	wire[0] = 99
	if _, err := bpcodec.Parse(wire); err != bpcodec.ErrParseBadVersion {
		t.Fatalf("expected ErrParseBadVersion, got %v", err)
	}
}

func TestParseShort(t *testing.T) {
	b := mkTestBundle(t)
	wire, _ := bpcodec.Format(b)
	if _, err := bpcodec.Parse(wire[:len(wire)-2]); err == nil {
		t.Fatal("expected an error parsing a truncated bundle")
	}
}

func TestDictDeduplicatesRepeatedEID(t *testing.T) {
	b := mkTestBundle(t)
	b.ReplyTo = b.Source
	b.Custodian = b.Source
	wire, err := bpcodec.Format(b)
	if err != nil {
		t.Fatal(err)
	}
	res, err := bpcodec.Parse(wire)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Bundle.ReplyTo.Equal(b.Source) || !res.Bundle.Custodian.Equal(b.Source) {
		t.Fatal("repeated EID did not round trip through the shared dictionary entry")
	}
}

func TestFragmentAndReassemble(t *testing.T) {
	b := mkTestBundle(t)
	b.Payload = bundle.Payload{Mode: bundle.MEMORY, Length: 10, Received: 10, Mem: []byte("0123456789")}

	head, tail, err := bpcodec.Fragment(b, 4)
	if err != nil {
		t.Fatal(err)
	}
	if head.OrigLength != 10 || tail.OrigLength != 10 {
		t.Fatalf("orig length not preserved: head=%d tail=%d", head.OrigLength, tail.OrigLength)
	}
	if head.FragOffset != 0 || tail.FragOffset != 4 {
		t.Fatalf("unexpected frag offsets: head=%d tail=%d", head.FragOffset, tail.FragOffset)
	}

	r := bpcodec.NewReassembler()
	if _, complete := r.Add(head); complete {
		t.Fatal("reassembly should not complete after only the head fragment")
	}
	out, complete := r.Add(tail)
	if !complete {
		t.Fatal("reassembly should complete once both fragments have arrived")
	}
	if string(out.Payload.Mem) != "0123456789" {
		t.Fatalf("reassembled payload mismatch: %q", out.Payload.Mem)
	}
	if out.IsFragment {
		t.Fatal("reassembled bundle should not be marked as a fragment")
	}
}

func TestFragmentReplicatesFlaggedExtBlocks(t *testing.T) {
	b := mkTestBundle(t)
	b.Payload = bundle.Payload{Mode: bundle.MEMORY, Length: 10, Received: 10, Mem: []byte("0123456789")}
	b.Ext = []bundle.ExtBlock{
		{Type: bundle.ExtMetadata, Flags: bundle.FlagReplicateInEveryFragment, Data: []byte("rep")},
		{Type: bundle.ExtSequenceID, Data: []byte("head-only")},
	}
	head, tail, err := bpcodec.Fragment(b, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(head.Ext) != 2 {
		t.Fatalf("expected both extension blocks in head, got %d", len(head.Ext))
	}
	if len(tail.Ext) != 1 || string(tail.Ext[0].Data) != "rep" {
		t.Fatalf("expected only the replicated block in tail, got %+v", tail.Ext)
	}
}
