// Package router implements the static route table: EID pattern to
// next-hop link plus an action, consulted in insertion order (§4.7).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package router

import (
	"fmt"
	"sync"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/link"
)

// Action is what to do with a bundle matching a route.
type Action uint8

const (
	Forward Action = iota
	ForwardAndKeepCopy
)

// Route maps a destination EID pattern to a next-hop link name.
type Route struct {
	Pattern eid.EID
	LinkName string
	Action  Action
}

// Table is the ordered static route table; patterns are evaluated in
// insertion order, and every match is used — there is no longest-match or
// first-match-wins shortcut (§4.7).
type Table struct {
	mtx    sync.RWMutex
	routes []Route
	links  *link.Manager
}

func NewTable(links *link.Manager) *Table {
	return &Table{links: links}
}

func (t *Table) Add(r Route) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.routes = append(t.routes, r)
}

func (t *Table) Del(pattern eid.EID) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	for i, r := range t.routes {
		if r.Pattern.Equal(pattern) {
			t.routes = append(t.routes[:i], t.routes[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("router: no route for pattern %s", pattern)
}

// Dump returns the current route table, in insertion order.
func (t *Table) Dump() []Route {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Enqueued is one (link, action) the bundle was handed to.
type Enqueued struct {
	LinkName string
	Action   Action
}

// Route finds every matching route for b's destination, in insertion
// order, and enqueues b on each whose link is OPEN or AVAILABLE (§4.7). A
// route whose link is not currently usable is skipped, not retried later
// by this call — the daemon re-evaluates on the next BundleReceived-style
// trigger (e.g. a LinkStateChange event).
func (t *Table) Route(b *bundle.Bundle) []Enqueued {
	t.mtx.RLock()
	matches := make([]Route, 0, 2)
	for _, r := range t.routes {
		if b.Dest.Match(r.Pattern) {
			matches = append(matches, r)
		}
	}
	t.mtx.RUnlock()

	var out []Enqueued
	for _, r := range matches {
		l, ok := t.links.Get(r.LinkName)
		if !ok {
			continue
		}
		switch l.State() {
		case link.OPEN, link.AVAILABLE:
			if _, err := l.Enqueue(b); err == nil {
				out = append(out, Enqueued{LinkName: r.LinkName, Action: r.Action})
			}
		}
	}
	return out
}

// HasMatch reports whether any route pattern matches dest, regardless of
// link usability — used to decide whether an unroutable bundle should be
// held pending a route change versus declared undeliverable (§4.7: "If
// none match and the destination is not local, the bundle is held until
// routes change").
func (t *Table) HasMatch(dest eid.EID) bool {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	for _, r := range t.routes {
		if dest.Match(r.Pattern) {
			return true
		}
	}
	return false
}
