// Package link implements the Link and Contact state machine.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package link_test

import (
	"testing"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/link"
)

func TestLifecycleHappyPath(t *testing.T) {
	l := link.New("l0", link.ONDEMAND, "peer1", "tcpcl", link.DefaultParams())
	if l.State() != link.UNAVAILABLE {
		t.Fatalf("new link should start UNAVAILABLE, got %s", l.State())
	}
	if err := l.SetAvailable(); err != nil {
		t.Fatal(err)
	}
	if l.State() != link.AVAILABLE {
		t.Fatalf("expected AVAILABLE, got %s", l.State())
	}

	b := &bundle.Bundle{LocalID: bundle.NewLocalID()}
	if _, err := l.Enqueue(b); err != nil {
		t.Fatal(err)
	}
	if l.State() != link.OPENING {
		t.Fatalf("enqueue on AVAILABLE should move to OPENING, got %s", l.State())
	}

	if err := l.OpenSucceeded(nil); err != nil {
		t.Fatal(err)
	}
	if l.State() != link.OPEN {
		t.Fatalf("expected OPEN after OpenSucceeded, got %s", l.State())
	}

	got, ok := l.Dequeue()
	if !ok || got != b {
		t.Fatal("expected to dequeue the bundle enqueued before open")
	}
}

func TestBusyTransition(t *testing.T) {
	params := link.DefaultParams()
	params.BusyQueueDepth = 2
	l := link.New("l0", link.ALWAYSON, "peer1", "tcpcl", params)
	l.SetAvailable()
	l.Enqueue(&bundle.Bundle{})
	l.OpenSucceeded(nil)

	becameBusy, err := l.Enqueue(&bundle.Bundle{}) // depth reaches BusyQueueDepth
	if err != nil {
		t.Fatal(err)
	}
	if !becameBusy || l.State() != link.BUSY {
		t.Fatalf("expected BUSY at depth %d, got %s", l.QueueDepth(), l.State())
	}

	l.Dequeue()
	l.Dequeue()
	if l.State() != link.OPEN {
		t.Fatalf("expected OPEN after draining below threshold, got %s", l.State())
	}
}

func TestAlwaysonReconnectsWithBackoff(t *testing.T) {
	params := link.DefaultParams()
	params.BackoffInitial = 10 * time.Millisecond
	params.BackoffMax = time.Second
	l := link.New("l0", link.ALWAYSON, "peer1", "tcpcl", params)
	l.SetAvailable()
	l.Enqueue(&bundle.Bundle{})

	d, should := l.OpenFailed()
	if !should || d != 10*time.Millisecond {
		t.Fatalf("expected a 10ms reconnect, got %v should=%v", d, should)
	}
}

func TestOndemandGoesIdleOnBreak(t *testing.T) {
	l := link.New("l0", link.ONDEMAND, "peer1", "tcpcl", link.DefaultParams())
	l.SetAvailable()
	l.Enqueue(&bundle.Bundle{})
	l.OpenSucceeded(nil)

	drained, _, shouldReconnect := l.Broken()
	if shouldReconnect {
		t.Fatal("ONDEMAND links should not auto-reconnect")
	}
	if len(drained) != 1 {
		t.Fatalf("expected the pending bundle to be drained, got %d", len(drained))
	}
	if l.State() != link.UNAVAILABLE {
		t.Fatalf("expected ONDEMAND to go idle (UNAVAILABLE), got %s", l.State())
	}
}

func TestInvalidTransitionReturnsError(t *testing.T) {
	l := link.New("l0", link.ONDEMAND, "peer1", "tcpcl", link.DefaultParams())
	if err := l.Close(); err == nil {
		t.Fatal("expected an error closing a link that was never opened")
	}
}

func TestAdmitOpensAnAvailableLinkDirectly(t *testing.T) {
	l := link.New("l0", link.OPPORTUNISTIC, "peer1", "tcpcl", link.DefaultParams())
	if err := l.Admit("conn"); err == nil {
		t.Fatal("expected admit to fail before set_available")
	}
	if err := l.SetAvailable(); err != nil {
		t.Fatal(err)
	}
	if err := l.Admit("conn"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	if l.State() != link.OPEN {
		t.Fatalf("expected OPEN after admit, got %s", l.State())
	}
}

func TestConnectAndResetAvailableRoundTrip(t *testing.T) {
	l := link.New("l0", link.ALWAYSON, "peer1", "tcpcl", link.DefaultParams())
	l.SetAvailable()
	if err := l.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if l.State() != link.OPENING {
		t.Fatalf("expected OPENING after connect, got %s", l.State())
	}
	if err := l.OpenSucceeded("conn"); err != nil {
		t.Fatal(err)
	}
	l.Enqueue(&bundle.Bundle{})

	drained, _, shouldReconnect := l.Broken()
	if !shouldReconnect {
		t.Fatal("expected ALWAYSON to request a reconnect")
	}
	if len(drained) != 1 {
		t.Fatalf("expected the pending bundle to be drained, got %d", len(drained))
	}
	if l.State() != link.CLOSED {
		t.Fatalf("expected CLOSED immediately after Broken, got %s", l.State())
	}

	l.ResetAvailable()
	if l.State() != link.AVAILABLE {
		t.Fatalf("expected ResetAvailable to move CLOSED -> AVAILABLE, got %s", l.State())
	}
	if err := l.Connect(); err != nil {
		t.Fatalf("connect after reset: %v", err)
	}
}

func TestManagerUsableFiltersByState(t *testing.T) {
	m := link.NewManager()
	a := link.New("a", link.ONDEMAND, "p1", "tcpcl", link.DefaultParams())
	b := link.New("b", link.ONDEMAND, "p2", "tcpcl", link.DefaultParams())
	m.Add(a)
	m.Add(b)

	a.SetAvailable()
	if got := m.Usable(); len(got) != 1 || got[0].Name != "a" {
		t.Fatalf("expected only 'a' to be usable, got %v", got)
	}
}
