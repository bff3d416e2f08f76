// engine bridges the convergence-layer Connections cl/conn.go defines
// (each "communicates with the daemon exclusively through events (upward)
// and the bounded command queue (downward)", per that package's own
// doc comment) to the daemon's link queues and event stream. It is the
// "CL worker thread" role §5 describes: one goroutine pair per live
// connection, talking to Daemon only via Post.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"time"

	"github.com/NVIDIA/aistore/cl"
	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/NVIDIA/aistore/daemon"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/link"
)

// engine owns the set of convergence-layer drivers a running daemon
// dials/accepts through, keyed by the name `link add`/discovery uses in
// Link.CLName.
type engine struct {
	d       *daemon.Daemon
	ctx     *daemon.DaemonContext
	drivers map[string]cl.ConvergenceLayer
}

func newEngine(d *daemon.Daemon, dctx *daemon.DaemonContext, drivers map[string]cl.ConvergenceLayer) *engine {
	return &engine{d: d, ctx: dctx, drivers: drivers}
}

// ensureConnected is registered on hk against every statically configured
// link: a link sitting in OPENING (something queued a bundle for it) gets
// one dial attempt per tick, and an ALWAYSON link sitting in AVAILABLE
// (freshly reset by handleContactDown's reconnect timer, or never yet
// dialed) is kicked the same way rather than waiting on a bundle to
// arrive before reopening. This is the same periodic-retry shape hk.Reg
// gives every other housekeeping task, applied to contact setup instead
// of cleanup.
func (e *engine) ensureConnected(l *link.Link) func() time.Duration {
	return func() time.Duration {
		switch {
		case l.State() == link.OPENING:
			e.connect(l)
		case l.Type == link.ALWAYSON && l.State() == link.AVAILABLE:
			if err := l.Connect(); err == nil {
				e.connect(l)
			}
		}
		return 2 * time.Second
	}
}

func (e *engine) connect(l *link.Link) {
	drv, ok := e.drivers[l.CLName]
	if !ok {
		nlog.Warningf("dtnd: link %s: no driver registered for cl %q", l.Name, l.CLName)
		return
	}
	dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	conn, err := drv.Dial(dialCtx, l.NextHop, cl.DefaultParams())
	cancel()
	if err != nil {
		if _, retry := l.OpenFailed(); retry {
			nlog.Warningf("dtnd: link %s: dial %s failed, will retry: %v", l.Name, l.NextHop, err)
		} else {
			nlog.Warningf("dtnd: link %s: dial %s failed: %v", l.Name, l.NextHop, err)
		}
		return
	}
	if err := l.OpenSucceeded(conn); err != nil {
		nlog.Warningf("dtnd: link %s: %v", l.Name, err)
		conn.Close()
		return
	}
	e.run(l, conn)
}

// acceptLoop accepts unsolicited inbound connections on drv (the
// opportunistic-link hook, §4.4/§4.5) and admits each one as an
// OPPORTUNISTIC link the same way k8sdisc admits a discovered peer:
// through EvDiscoveryPeer, so admission policy lives in one place
// (daemon.handleDiscoveryPeer) regardless of how the peer was found.
func (e *engine) acceptLoop(clName, localScheme string, drv cl.ConvergenceLayer) {
	for {
		remoteHint, conn, err := drv.Accept(context.Background())
		if err != nil {
			nlog.Warningf("dtnd: %s: accept: %v", clName, err)
			return
		}
		linkName := clName + "-" + remoteHint
		if _, ok := e.ctx.Links.Get(linkName); ok {
			// already admitted (e.g. a second inbound connection from the
			// same peer); this driver has nowhere else to put it.
			conn.Close()
			continue
		}
		wildcard, err := eid.New(localScheme, "*")
		if err != nil {
			nlog.Warningf("dtnd: %s: build wildcard pattern: %v", clName, err)
			conn.Close()
			continue
		}
		res, errp := e.d.PostSync(&daemon.Event{
			Kind:     daemon.EvDiscoveryPeer,
			LinkName: linkName,
			Value:    remoteHint,
			Key:      clName,
			Pattern:  wildcard,
		})
		if errp != nil || res != true {
			conn.Close()
			continue
		}
		l, ok := e.ctx.Links.Get(linkName)
		if !ok {
			conn.Close()
			continue
		}
		if err := l.Admit(conn); err != nil {
			nlog.Warningf("dtnd: link %s: %v", l.Name, err)
			conn.Close()
			continue
		}
		go e.run(l, conn)
	}
}

// run drives one live connection until it terminates: a goroutine feeding
// the link's outbound queue into conn.Commands, and the caller's own
// goroutine (conn.Run, called synchronously here) pumping the socket.
// Every transition is surfaced to the daemon as an event, never applied
// to the Link directly from here — handleContactUp/Down/BundleTransmitted
// remain the only code that mutates Link/Table state (§5 "one
// authoritative mutator").
func (e *engine) run(l *link.Link, conn *cl.Connection) {
	e.d.Post(&daemon.Event{Kind: daemon.EvContactUp, LinkName: l.Name})

	stop := make(chan struct{})
	go e.pumpSend(l, conn, stop)

	go func() {
		for ev := range conn.Events {
			e.translate(l, ev)
		}
	}()

	conn.Run()
	close(stop)
	e.d.Post(&daemon.Event{Kind: daemon.EvContactDown, LinkName: l.Name, Reason: daemon.ReasonBroken})
}

// pumpSend dequeues bundles the router has enqueued on l and forwards
// them as CmdSendBundle commands; cl.Connection queues them internally
// (c.inflight) and paces the wire itself, so this loop only needs to keep
// the pipe fed, not implement any flow control of its own.
func (e *engine) pumpSend(l *link.Link, conn *cl.Connection, stop <-chan struct{}) {
	idle := time.NewTicker(25 * time.Millisecond)
	defer idle.Stop()
	for {
		select {
		case <-stop:
			return
		default:
		}
		b, ok := l.Dequeue()
		if !ok {
			select {
			case <-stop:
				return
			case <-idle.C:
			}
			continue
		}
		select {
		case conn.Commands <- cl.Command{Kind: cl.CmdSendBundle, Bundle: b}:
		case <-stop:
			return
		}
	}
}

func (e *engine) translate(l *link.Link, ev cl.Event) {
	switch ev.Kind {
	case cl.EvBundleTransmitted:
		e.d.Post(&daemon.Event{Kind: daemon.EvBundleTransmitted, LinkName: l.Name, Bundle: ev.Bundle, Sent: ev.Sent, Acked: ev.Acked})
	case cl.EvBundleTransmitFailed:
		e.d.Post(&daemon.Event{Kind: daemon.EvBundleTransmitFailed, LinkName: l.Name, Bundle: ev.Bundle})
	case cl.EvBundleReceived:
		e.d.Post(&daemon.Event{Kind: daemon.EvBundleReceived, LinkName: l.Name, Bundle: ev.Bundle})
	case cl.EvPartialReceived:
		nlog.Warningf("dtnd: link %s: partial bundle dropped (%d bytes) on contact break", l.Name, ev.Sent)
	}
}
