// Package cl implements the connection-oriented convergence-layer
// framework.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cl_test

import (
	"net"
	"testing"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/cl"
	"github.com/NVIDIA/aistore/eid"
)

func testParams() cl.Params {
	p := cl.DefaultParams()
	p.KeepaliveInterval = time.Hour
	p.DataTimeout = time.Hour
	p.BlockLength = 4
	return p
}

func TestSendReceiveRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	sender := cl.NewConnection(a, testParams())
	receiver := cl.NewConnection(b, testParams())
	go sender.Run()
	go receiver.Run()

	src, _ := eid.Parse("dtn://node1/app")
	dst, _ := eid.Parse("dtn://node2/app")
	bun := &bundle.Bundle{
		LocalID: bundle.NewLocalID(),
		Source:  src,
		Dest:    dst,
		ID:      bundle.Identity{Source: src, Timestamp: bundle.Timestamp{Seconds: 1}},
		Payload: bundle.Payload{Mode: bundle.MEMORY, Length: 9, Received: 9, Mem: []byte("hi there!")},
	}
	sender.Commands <- cl.Command{Kind: cl.CmdSendBundle, Bundle: bun}

	select {
	case ev := <-receiver.Events:
		if ev.Kind != cl.EvBundleReceived {
			t.Fatalf("expected EvBundleReceived, got %v (err=%v)", ev.Kind, ev.Err)
		}
		if string(ev.Bundle.Payload.Mem) != "hi there!" {
			t.Fatalf("payload mismatch: %q", ev.Bundle.Payload.Mem)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the bundle to arrive")
	}

	select {
	case ev := <-sender.Events:
		if ev.Kind != cl.EvBundleTransmitted {
			t.Fatalf("expected EvBundleTransmitted, got %v (err=%v)", ev.Kind, ev.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the send-complete event")
	}

	sender.Close()
	receiver.Close()
}

func TestContactHeaderRoundTrip(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		done <- cl.WriteContactHeader(a, cl.ContactHeader{Version: 1, Flags: cl.FlagBlockAckEnabled, KeepaliveSeconds: 30})
	}()

	h, err := cl.ReadContactHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if h.Version != 1 || h.Flags != cl.FlagBlockAckEnabled || h.KeepaliveSeconds != 30 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestReadContactHeaderBadMagic(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	go a.Write([]byte("xxxx\x01\x00\x00\x1e"))
	if _, err := cl.ReadContactHeader(b); err != cl.ErrBadMagic {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}
