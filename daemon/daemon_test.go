// Package daemon implements the single authoritative mutator.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package daemon_test

import (
	"context"
	"testing"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/config"
	"github.com/NVIDIA/aistore/daemon"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/hk"
	"github.com/NVIDIA/aistore/link"
	"github.com/NVIDIA/aistore/reg"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestDaemon(t *testing.T) (*daemon.Daemon, *daemon.DaemonContext) {
	t.Helper()
	h := hk.New()
	go h.Run()
	h.WaitStarted()
	t.Cleanup(h.Stop)

	local, err := eid.Parse("dtn://node1/")
	if err != nil {
		t.Fatalf("parse local eid: %v", err)
	}
	ctx := daemon.NewContext(local, nil, h, config.Defaults())
	m := daemon.NewMetrics(prometheus.NewRegistry())
	d := daemon.New(ctx, m)
	go d.Run()
	return d, ctx
}

func TestOpenCloseSession(t *testing.T) {
	d, _ := newTestDaemon(t)
	res, derr := d.PostSync(&daemon.Event{Kind: daemon.EvOpen})
	if derr != nil {
		t.Fatalf("open: %v", derr)
	}
	sid, ok := res.(string)
	if !ok || sid == "" {
		t.Fatalf("expected a non-empty session id, got %+v", res)
	}
	if _, derr := d.PostSync(&daemon.Event{Kind: daemon.EvClose, SessionID: sid}); derr != nil {
		t.Fatalf("close: %v", derr)
	}
}

func TestRegisterBindSendRecv(t *testing.T) {
	d, _ := newTestDaemon(t)

	openRes, _ := d.PostSync(&daemon.Event{Kind: daemon.EvOpen})
	sid := openRes.(string)

	dest, _ := eid.Parse("dtn://node1/inbox")
	pattern, _ := eid.Parse("dtn://node1/*")

	regRes, derr := d.PostSync(&daemon.Event{Kind: daemon.EvRegister, Pattern: pattern, Action: reg.DEFER})
	if derr != nil {
		t.Fatalf("register: %v", derr)
	}
	regid := regRes.(uint32)

	if _, derr := d.PostSync(&daemon.Event{Kind: daemon.EvBind, SessionID: sid, RegID: regid}); derr != nil {
		t.Fatalf("bind: %v", derr)
	}

	b := &bundle.Bundle{Dest: dest}
	sendRes, derr := d.PostSync(&daemon.Event{Kind: daemon.EvSend, BundleSpec: b, Payload: []byte("hello")})
	if derr != nil {
		t.Fatalf("send: %v", derr)
	}
	if _, ok := sendRes.(uint64); !ok {
		t.Fatalf("expected a bundle local id back from send, got %+v", sendRes)
	}

	// deliver it to the local registration as an inbound bundle would be.
	recvd := &bundle.Bundle{Dest: dest, Payload: bundle.Payload{Mode: bundle.MEMORY, Mem: []byte("hello"), Length: 5, Received: 5}}
	if _, derr := d.PostSync(&daemon.Event{Kind: daemon.EvBundleReceived, Bundle: recvd}); derr != nil {
		t.Fatalf("bundle received: %v", derr)
	}

	recvRes, derr := d.PostSync(&daemon.Event{Kind: daemon.EvRecv, SessionID: sid})
	if derr != nil {
		t.Fatalf("recv: %v", derr)
	}
	got := recvRes.(*bundle.Bundle)
	if string(got.Payload.Mem) != "hello" {
		t.Fatalf("expected payload %q, got %q", "hello", got.Payload.Mem)
	}
}

func TestRecvTimesOutWhenNothingPending(t *testing.T) {
	d, _ := newTestDaemon(t)
	openRes, _ := d.PostSync(&daemon.Event{Kind: daemon.EvOpen})
	sid := openRes.(string)

	pattern, _ := eid.Parse("dtn://node1/*")
	regRes, _ := d.PostSync(&daemon.Event{Kind: daemon.EvRegister, Pattern: pattern, Action: reg.DEFER})
	regid := regRes.(uint32)
	d.PostSync(&daemon.Event{Kind: daemon.EvBind, SessionID: sid, RegID: regid})

	_, derr := d.PostSync(&daemon.Event{Kind: daemon.EvRecv, SessionID: sid, Timeout: 100 * time.Millisecond})
	if derr == nil {
		t.Fatal("expected a timeout error")
	}
	if derr.Kind != daemon.NotFound {
		t.Fatalf("expected NotFound kind, got %v", derr.Kind)
	}
}

func TestSendRejectsUnroutableDestination(t *testing.T) {
	d, _ := newTestDaemon(t)
	dest, _ := eid.Parse("dtn://nowhere/x")
	b := &bundle.Bundle{Dest: dest}
	_, derr := d.PostSync(&daemon.Event{Kind: daemon.EvSend, BundleSpec: b, Payload: []byte("x")})
	if derr == nil || derr.Kind != daemon.PolicyReject {
		t.Fatalf("expected PolicyReject, got %v", derr)
	}
}

func TestSendRoutesThroughOpenLink(t *testing.T) {
	d, ctx := newTestDaemon(t)
	l := link.New("to-x", link.ALWAYSON, "", "tcpcl", link.DefaultParams())
	ctx.Links.Add(l)
	l.SetAvailable()

	pattern, _ := eid.Parse("dtn://relay/*")
	if _, derr := d.PostSync(&daemon.Event{Kind: daemon.EvRouteAdd, Pattern: pattern, LinkName: "to-x"}); derr != nil {
		t.Fatalf("route add: %v", derr)
	}

	dest, _ := eid.Parse("dtn://relay/inbox")
	b := &bundle.Bundle{Dest: dest}
	if _, derr := d.PostSync(&daemon.Event{Kind: daemon.EvSend, BundleSpec: b, Payload: []byte("x")}); derr != nil {
		t.Fatalf("send: %v", derr)
	}
	if l.QueueDepth() != 1 {
		t.Fatalf("expected one bundle queued on the link, got %d", l.QueueDepth())
	}
}

func TestDiscoveryPeerAddsOpportunisticLinkAndRoute(t *testing.T) {
	d, ctx := newTestDaemon(t)
	peer, _ := eid.Parse("dtn://peer7/")
	res, derr := d.PostSync(&daemon.Event{
		Kind: daemon.EvDiscoveryPeer, LinkName: "k8s-peer7", Value: "10.0.0.7:4556", Key: "tcpcl", Pattern: peer,
	})
	if derr != nil {
		t.Fatalf("discovery peer: %v", derr)
	}
	if admitted, _ := res.(bool); !admitted {
		t.Fatal("expected the first discovery tick to be reported as a new admission")
	}
	l, ok := ctx.Links.Get("k8s-peer7")
	if !ok {
		t.Fatal("expected an OPPORTUNISTIC link to have been added")
	}
	if l.Type != link.OPPORTUNISTIC {
		t.Fatalf("expected OPPORTUNISTIC, got %v", l.Type)
	}
	if l.State() != link.AVAILABLE {
		t.Fatalf("expected AVAILABLE, got %v", l.State())
	}

	b := &bundle.Bundle{Dest: peer}
	if _, derr := d.PostSync(&daemon.Event{Kind: daemon.EvSend, BundleSpec: b, Payload: []byte("x")}); derr != nil {
		t.Fatalf("send: %v", derr)
	}
	if l.QueueDepth() != 1 {
		t.Fatalf("expected the discovered link to receive the bundle, got queue depth %d", l.QueueDepth())
	}
}

func TestDiscoveryPeerIsIdempotentForAnAlreadyKnownLink(t *testing.T) {
	d, _ := newTestDaemon(t)
	peer, _ := eid.Parse("dtn://peer9/")
	ev := &daemon.Event{Kind: daemon.EvDiscoveryPeer, LinkName: "k8s-peer9", Value: "10.0.0.9:4556", Key: "tcpcl", Pattern: peer}
	if _, derr := d.PostSync(ev); derr != nil {
		t.Fatalf("first discovery: %v", derr)
	}
	res, derr := d.PostSync(ev)
	if derr != nil {
		t.Fatalf("second discovery: %v", derr)
	}
	if admitted, _ := res.(bool); admitted {
		t.Fatal("expected the second tick for the same link name to report no new admission")
	}
}

func TestContactDownReleasesQueueAndSchedulesReconnect(t *testing.T) {
	d, ctx := newTestDaemon(t)
	params := link.DefaultParams()
	params.BackoffInitial = 5 * time.Millisecond
	l := link.New("to-x", link.ALWAYSON, "", "tcpcl", params)
	ctx.Links.Add(l)
	l.SetAvailable()
	if err := l.Connect(); err != nil {
		t.Fatal(err)
	}
	if err := l.OpenSucceeded(nil); err != nil {
		t.Fatal(err)
	}
	b := &bundle.Bundle{}
	l.Enqueue(b)

	if _, derr := d.PostSync(&daemon.Event{Kind: daemon.EvContactDown, LinkName: "to-x"}); derr != nil {
		t.Fatalf("contact down: %v", derr)
	}
	if l.State() != link.CLOSED {
		t.Fatalf("expected CLOSED right after contact down, got %s", l.State())
	}
	if b.Refcount() != 0 {
		t.Fatalf("expected the drained bundle's link reference released, got refcount %d", b.Refcount())
	}

	deadline := time.Now().Add(time.Second)
	for l.State() != link.AVAILABLE && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if l.State() != link.AVAILABLE {
		t.Fatalf("expected the reconnect timer to move the link back to AVAILABLE, got %s", l.State())
	}
}

func TestShutdownClosesContactsAndStopsDispatcher(t *testing.T) {
	d, ctx := newTestDaemon(t)
	l := link.New("to-x", link.ALWAYSON, "", "tcpcl", link.DefaultParams())
	ctx.Links.Add(l)

	var closed []string
	d.CloseContact = func(name string) error {
		closed = append(closed, name)
		return nil
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if len(closed) != 1 || closed[0] != "to-x" {
		t.Fatalf("expected to-x closed, got %+v", closed)
	}
}
