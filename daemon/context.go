// DaemonContext: the one struct holding every global table, reached by
// each event handler through its *Daemon receiver rather than exposed as
// package-level singletons (§9 "Global mutable state").
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package daemon

import (
	"github.com/NVIDIA/aistore/archive"
	"github.com/NVIDIA/aistore/config"
	"github.com/NVIDIA/aistore/custody"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/hk"
	"github.com/NVIDIA/aistore/link"
	"github.com/NVIDIA/aistore/reg"
	"github.com/NVIDIA/aistore/router"
	"github.com/NVIDIA/aistore/store"
)

// Session is the API adapter's loopback session state (§4.9): its bound
// registration (if any), and whether it currently holds the POLL lock.
type Session struct {
	ID       string
	BoundReg uint32
	Polling  bool

	// pending is a parked recv/begin_poll Event awaiting a bundle or a
	// timeout; nil when the session has no outstanding wait.
	pending *Event
}

// DaemonContext is uniquely owned by the dispatcher goroutine; nothing
// outside Daemon.Run touches its fields.
type DaemonContext struct {
	LocalEID eid.EID
	Store    *store.Store
	Regs     *reg.Table
	Links    *link.Manager
	Routes   *router.Table
	Custody  *custody.Subsystem
	HK       *hk.HK
	Config   *config.Tunables
	Archive  *archive.Manager // nil unless set; cmd/dtnd always sets one

	Sessions map[string]*Session
}

// NewContext builds a DaemonContext with a given set of tunables (from
// config.Load at startup); cfg may be nil, in which case config.Defaults()
// is used.
func NewContext(localEID eid.EID, st *store.Store, h *hk.HK, cfg *config.Tunables) *DaemonContext {
	if cfg == nil {
		cfg = config.Defaults()
	}
	links := link.NewManager()
	return &DaemonContext{
		LocalEID: localEID,
		Store:    st,
		Regs:     reg.NewTable(1 << 16),
		Links:    links,
		Routes:   router.NewTable(links),
		Custody:  custody.NewSubsystem(h, cfg.CustodyRetryFactor),
		HK:       h,
		Config:   cfg,
		Sessions: make(map[string]*Session),
	}
}
