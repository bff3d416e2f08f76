// Package router implements the static route table.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package router_test

import (
	"testing"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/link"
	"github.com/NVIDIA/aistore/router"
)

func mustEID(t *testing.T, s string) eid.EID {
	t.Helper()
	e, err := eid.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return e
}

func openLink(t *testing.T, m *link.Manager, name string) *link.Link {
	t.Helper()
	l := link.New(name, link.ALWAYSON, "", "tcpcl", link.DefaultParams())
	if err := m.Add(l); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.SetAvailable(); err != nil {
		t.Fatalf("SetAvailable: %v", err)
	}
	return l
}

func TestRouteEnqueuesOnUsableLink(t *testing.T) {
	m := link.NewManager()
	openLink(t, m, "to-relay")

	rt := router.NewTable(m)
	rt.Add(router.Route{Pattern: mustEID(t, "dtn://relay/*"), LinkName: "to-relay"})

	b := &bundle.Bundle{Dest: mustEID(t, "dtn://relay/inbox")}
	got := rt.Route(b)
	if len(got) != 1 || got[0].LinkName != "to-relay" {
		t.Fatalf("expected one enqueue on to-relay, got %+v", got)
	}
}

func TestRouteSkipsUnusableLink(t *testing.T) {
	m := link.NewManager()
	l := link.New("down", link.ONDEMAND, "", "tcpcl", link.DefaultParams())
	if err := m.Add(l); err != nil {
		t.Fatalf("Add: %v", err)
	} // left UNAVAILABLE

	rt := router.NewTable(m)
	rt.Add(router.Route{Pattern: mustEID(t, "dtn://relay/*"), LinkName: "down"})

	b := &bundle.Bundle{Dest: mustEID(t, "dtn://relay/inbox")}
	if got := rt.Route(b); len(got) != 0 {
		t.Fatalf("expected no enqueue through a down link, got %+v", got)
	}
	if !rt.HasMatch(b.Dest) {
		t.Fatal("expected HasMatch to report a pattern match regardless of link state")
	}
}

func TestRouteInsertionOrderAllMatchesUsed(t *testing.T) {
	m := link.NewManager()
	openLink(t, m, "primary")
	openLink(t, m, "backup")

	rt := router.NewTable(m)
	rt.Add(router.Route{Pattern: mustEID(t, "dtn://relay/*"), LinkName: "primary"})
	rt.Add(router.Route{Pattern: mustEID(t, "dtn://relay/*"), LinkName: "backup"})

	b := &bundle.Bundle{Dest: mustEID(t, "dtn://relay/inbox")}
	got := rt.Route(b)
	if len(got) != 2 || got[0].LinkName != "primary" || got[1].LinkName != "backup" {
		t.Fatalf("expected both routes used in insertion order, got %+v", got)
	}
}

func TestHasMatchFalseWhenNoPatternMatches(t *testing.T) {
	m := link.NewManager()
	rt := router.NewTable(m)
	rt.Add(router.Route{Pattern: mustEID(t, "dtn://relay/*"), LinkName: "primary"})

	if rt.HasMatch(mustEID(t, "dtn://other/inbox")) {
		t.Fatal("expected no match for an unrelated destination")
	}
}

func TestDelRemovesRoute(t *testing.T) {
	m := link.NewManager()
	rt := router.NewTable(m)
	pat := mustEID(t, "dtn://relay/*")
	rt.Add(router.Route{Pattern: pat, LinkName: "primary"})

	if err := rt.Del(pat); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if len(rt.Dump()) != 0 {
		t.Fatal("expected route table empty after Del")
	}
	if err := rt.Del(pat); err == nil {
		t.Fatal("expected error deleting an already-removed route")
	}
}
