// Package reg implements the Registration Table.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package reg_test

import (
	"testing"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/reg"
)

func mkBundle(dest eid.EID) *bundle.Bundle {
	return &bundle.Bundle{LocalID: bundle.NewLocalID(), Dest: dest, Payload: bundle.Payload{Mode: bundle.MEMORY}}
}

func TestAddAssignsMonotonicRegIDs(t *testing.T) {
	table := reg.NewTable(64)
	p, _ := eid.New("dtn", "app/*")
	a := table.Add(p, reg.DROP, "", 0, false)
	b := table.Add(p, reg.DROP, "", 0, false)
	if b.RegID <= a.RegID {
		t.Fatalf("expected increasing regids, got %d then %d", a.RegID, b.RegID)
	}
}

func TestFindMatchingWildcard(t *testing.T) {
	table := reg.NewTable(64)
	p, _ := eid.New("dtn", "app/*")
	table.Add(p, reg.DROP, "", 0, false)

	in, _ := eid.New("dtn", "app/ping")
	out, _ := eid.New("dtn", "other/ping")
	if len(table.FindMatching(in)) != 1 {
		t.Fatal("expected one match for in-pattern EID")
	}
	if len(table.FindMatching(out)) != 0 {
		t.Fatal("expected no match for out-of-pattern EID")
	}
}

func TestDeliverBoundGoesToFIFO(t *testing.T) {
	table := reg.NewTable(64)
	p, _ := eid.New("dtn", "app")
	d := table.Add(p, reg.DROP, "", 0, false)
	table.Bind(d.RegID, "session-1")

	dest, _ := eid.New("dtn", "app")
	b := mkBundle(dest)
	queued, dropped, deferred, executed := table.Deliver(dest, b)
	if len(queued) != 1 || len(dropped)+len(deferred)+len(executed) != 0 {
		t.Fatalf("expected bundle queued to bound registration, got queued=%v dropped=%v deferred=%v executed=%v", queued, dropped, deferred, executed)
	}
	popped := table.Pop(d.RegID)
	if popped != b {
		t.Fatal("expected Pop to return the delivered bundle")
	}
}

func TestDeliverUnboundAppliesAction(t *testing.T) {
	table := reg.NewTable(64)
	pattern, _ := eid.New("dtn", "app")
	dDrop := table.Add(pattern, reg.DROP, "", 0, false)
	dDefer := table.Add(pattern, reg.DEFER, "", 0, false)
	dExec := table.Add(pattern, reg.EXEC, "/bin/true", 0, false)

	dest, _ := eid.New("dtn", "app")
	b := mkBundle(dest)
	_, dropped, deferred, executed := table.Deliver(dest, b)

	if len(dropped) != 1 || dropped[0] != dDrop.RegID {
		t.Fatalf("expected DROP registration in dropped list, got %v", dropped)
	}
	if len(deferred) != 1 || deferred[0] != dDefer.RegID {
		t.Fatalf("expected DEFER registration in deferred list, got %v", deferred)
	}
	if len(executed) != 1 || executed[0] != dExec.RegID {
		t.Fatalf("expected EXEC registration in executed list, got %v", executed)
	}
	if table.Pop(dDefer.RegID) == nil {
		t.Fatal("expected DEFER registration to have queued the bundle")
	}
}

func TestDedupCache(t *testing.T) {
	table := reg.NewTable(64)
	dest, _ := eid.New("dtn", "app")
	b := mkBundle(dest)
	if table.SeenRecently(b) {
		t.Fatal("fresh bundle should not be reported as seen")
	}
	table.MarkSeen(b)
	if !table.SeenRecently(b) {
		t.Fatal("expected bundle to be reported seen after MarkSeen")
	}
}

func TestRemoveUnknownRegistration(t *testing.T) {
	table := reg.NewTable(64)
	if err := table.Remove(9999); err == nil {
		t.Fatal("expected an error removing an unknown registration")
	}
}
