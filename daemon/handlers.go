// Per-event handler methods (§4.8 "dispatched ... to per-type handler
// methods with default no-op implementations"). Every handler runs on the
// dispatcher goroutine and may freely mutate DaemonContext.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package daemon

import (
	"strings"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/cmn/nlog"
	"github.com/NVIDIA/aistore/custody"
	"github.com/NVIDIA/aistore/hk"
	"github.com/NVIDIA/aistore/link"
	"github.com/NVIDIA/aistore/router"
	"github.com/teris-io/shortid"
)

// dispatch is the large tagged-union switch (§4.8). Unhandled kinds are a
// no-op, matching the spec's "default no-op implementations".
func (d *Daemon) dispatch(ev *Event) {
	switch ev.Kind {
	case EvOpen:
		d.handleOpen(ev)
	case EvClose:
		d.handleClose(ev)
	case EvLocalEID:
		d.handleLocalEID(ev)
	case EvRegister:
		d.handleRegister(ev)
	case EvUnregister:
		d.handleUnregister(ev)
	case EvFindRegistration:
		d.handleFindRegistration(ev)
	case EvBind:
		d.handleBind(ev)
	case EvSend:
		d.handleSend(ev)
	case EvRecv:
		d.handleRecv(ev)
	case EvBeginPoll:
		d.handleBeginPoll(ev)
	case EvCancelPoll:
		d.handleCancelPoll(ev)
	case EvRecvTimeout:
		d.handleRecvTimeout(ev)
	case EvBundleTransmitted:
		d.handleBundleTransmitted(ev)
	case EvBundleTransmitFailed:
		d.handleBundleTransmitFailed(ev)
	case EvBundleReceived:
		d.handleBundleReceived(ev)
	case EvContactUp:
		d.handleContactUp(ev)
	case EvContactDown:
		d.handleContactDown(ev)
	case EvRouteAdd:
		d.handleRouteAdd(ev)
	case EvRouteDel:
		d.handleRouteDel(ev)
	case EvCustodySignal:
		d.handleCustodySignal(ev)
	case EvDiscoveryPeer:
		d.handleDiscoveryPeer(ev)
	case EvParamSet:
		d.handleParamSet(ev)
	case EvParamGet:
		d.handleParamGet(ev)
	case EvParamDump:
		d.handleParamDump(ev)
	case EvShutdown:
		ev.reply(nil, nil)
	default:
		ev.reply(nil, nil) // no-op: this event kind carries no mutation yet
	}
}

func (d *Daemon) handleOpen(ev *Event) {
	id, err := shortid.Generate()
	if err != nil {
		ev.reply(nil, Wrap(ResourceExhausted, err))
		return
	}
	d.ctx.Sessions[id] = &Session{ID: id}
	ev.reply(id, nil)
}

// handleClose is infallible from the API's perspective: per §9's resolved
// open question, close never surfaces an error code to the caller; any
// underlying problem is logged only.
func (d *Daemon) handleClose(ev *Event) {
	s, ok := d.ctx.Sessions[ev.SessionID]
	if !ok {
		ev.reply(nil, nil)
		return
	}
	if s.BoundReg != 0 {
		d.ctx.Regs.Unbind(s.BoundReg)
	}
	delete(d.ctx.Sessions, ev.SessionID)
	ev.reply(nil, nil)
}

func (d *Daemon) handleLocalEID(ev *Event) {
	ev.reply(d.ctx.LocalEID, nil)
}

func (d *Daemon) handleRegister(ev *Event) {
	desc := d.ctx.Regs.Add(ev.Pattern, ev.Action, "", 0, false)
	ev.reply(desc.RegID, nil)
}

func (d *Daemon) handleUnregister(ev *Event) {
	if err := d.ctx.Regs.Remove(ev.RegID); err != nil {
		ev.reply(nil, Wrap(NotFound, err))
		return
	}
	ev.reply(nil, nil)
}

func (d *Daemon) handleFindRegistration(ev *Event) {
	matches := d.ctx.Regs.FindMatching(ev.Pattern)
	if len(matches) == 0 {
		ev.reply(nil, NewError(NotFound, "no registration matches %s", ev.Pattern))
		return
	}
	ev.reply(matches[0].RegID, nil)
}

func (d *Daemon) handleBind(ev *Event) {
	s, ok := d.ctx.Sessions[ev.SessionID]
	if !ok {
		ev.reply(nil, NewError(NotFound, "no such session %s", ev.SessionID))
		return
	}
	if err := d.ctx.Regs.Bind(ev.RegID, ev.SessionID); err != nil {
		ev.reply(nil, Wrap(NotFound, err))
		return
	}
	s.BoundReg = ev.RegID
	ev.reply(nil, nil)
}

// handleSend builds the outgoing bundle, routes it through the static
// route table, and accepts custody if requested (§4.6, §4.7). A
// destination with no matching route is rejected unless it lies under the
// local EID; this call does not itself deliver to local registrations.
func (d *Daemon) handleSend(ev *Event) {
	b := ev.BundleSpec
	if b == nil {
		ev.reply(nil, NewError(ResourceExhausted, "send: missing bundle spec"))
		return
	}
	b.LocalID = bundle.NewLocalID()
	b.Source = d.ctx.LocalEID
	b.Payload = bundle.Payload{Mode: bundle.MEMORY, Mem: ev.Payload, Length: int64(len(ev.Payload)), Received: int64(len(ev.Payload))}
	b.Retain()

	enq := d.ctx.Routes.Route(b)
	local := b.Dest.Scheme() == d.ctx.LocalEID.Scheme() &&
		(b.Dest.SSP() == d.ctx.LocalEID.SSP() || strings.HasPrefix(b.Dest.SSP(), d.ctx.LocalEID.SSP()+"/"))
	if len(enq) == 0 && !local && !d.ctx.Routes.HasMatch(b.Dest) {
		b.Release()
		ev.reply(nil, NewError(PolicyReject, "send: no route to %s", b.Dest))
		return
	}
	if b.Opts.Has(bundle.OptCustody) {
		d.ctx.Custody.AcceptCustody(b)
	}
	ev.reply(b.LocalID, nil)
}

// handleRecv pops the head of the bound registration's FIFO; if empty and
// the caller asked to wait, parks the event on the session until a
// matching Deliver or the timeout fires, rather than blocking the
// dispatcher goroutine (§5 "the daemon thread blocks only on its event
// queue").
func (d *Daemon) handleRecv(ev *Event) {
	s, ok := d.ctx.Sessions[ev.SessionID]
	if !ok {
		ev.reply(nil, NewError(NotFound, "no such session %s", ev.SessionID))
		return
	}
	if s.Polling {
		ev.reply(nil, NewError(InPoll, "session %s: in POLL state", ev.SessionID))
		return
	}
	if b := d.ctx.Regs.Pop(s.BoundReg); b != nil {
		d.releaseBundle(b, nil)
		ev.reply(b, nil)
		return
	}
	if ev.Timeout <= 0 {
		ev.reply(nil, NewError(NotFound, "recv: nothing pending"))
		return
	}
	d.parkRecv(s, ev)
}

func (d *Daemon) handleBeginPoll(ev *Event) {
	s, ok := d.ctx.Sessions[ev.SessionID]
	if !ok {
		ev.reply(nil, NewError(NotFound, "no such session %s", ev.SessionID))
		return
	}
	s.Polling = true
	if b := d.ctx.Regs.Pop(s.BoundReg); b != nil {
		d.releaseBundle(b, nil)
		s.Polling = false
		ev.reply(b, nil)
		return
	}
	d.parkRecv(s, ev)
}

func (d *Daemon) handleCancelPoll(ev *Event) {
	s, ok := d.ctx.Sessions[ev.SessionID]
	if !ok {
		ev.reply(nil, nil)
		return
	}
	s.Polling = false
	d.failPending(s, NewError(InPoll, "poll cancelled"))
	ev.reply(nil, nil)
}

func (d *Daemon) parkRecv(s *Session, ev *Event) {
	s.pending = ev
	timerName := "recv-" + s.ID
	d.ctx.HK.Reg(timerName, func() time.Duration {
		d.Post(&Event{Kind: EvRecvTimeout, SessionID: s.ID})
		return hk.UnregInterval
	}, ev.Timeout)
}

func (d *Daemon) handleRecvTimeout(ev *Event) {
	s, ok := d.ctx.Sessions[ev.SessionID]
	if !ok || s.pending == nil {
		return
	}
	s.Polling = false
	d.failPending(s, NewError(NotFound, "recv: timed out"))
}

func (d *Daemon) failPending(s *Session, err *Error) {
	if s.pending == nil {
		return
	}
	pending := s.pending
	s.pending = nil
	d.ctx.HK.Unreg("recv-" + s.ID)
	pending.reply(nil, err)
}

// deliverToSessions wakes any session parked on a recv/begin_poll for a
// regid that just received a bundle.
func (d *Daemon) deliverToSessions(regids []uint32) {
	for _, regid := range regids {
		for _, s := range d.ctx.Sessions {
			if s.BoundReg != regid || s.pending == nil {
				continue
			}
			b := d.ctx.Regs.Pop(regid)
			if b == nil {
				continue
			}
			d.releaseBundle(b, nil)
			pending := s.pending
			s.pending = nil
			s.Polling = false
			d.ctx.HK.Unreg("recv-" + s.ID)
			pending.reply(b, nil)
		}
	}
}

// releaseBundle drops one reference that a caller held on b (FIFO
// membership, link queue membership) and, if that was the last one, runs
// archival (§4.10 "on bundle free"). Every site that removes a bundle from
// a queue it no longer needs — registration delivery, link transmission,
// a broken contact's drained queue — must route through here so archival
// triggers on every path to zero, not only the last-hop forward case.
func (d *Daemon) releaseBundle(b *bundle.Bundle, trail []bundle.StatusReport) {
	if b == nil {
		return
	}
	if b.Release() && d.ctx.Archive != nil {
		d.ctx.Archive.Archive(b, trail)
	}
}

// handleBundleTransmitted records the successful send and releases the
// link queue's reference on the bundle (§4.10 "on bundle free").
func (d *Daemon) handleBundleTransmitted(ev *Event) {
	d.metrics.setLinkQueueDepth(ev.LinkName, 0)
	d.releaseBundle(ev.Bundle, nil)
	ev.reply(nil, nil)
}

// handleBundleTransmitFailed releases the link queue's reference on a
// bundle whose send attempt failed or whose connection closed before it
// went out (§4.10 "on bundle free" applies here too, not only success).
func (d *Daemon) handleBundleTransmitFailed(ev *Event) {
	nlog.Warningf("daemon: bundle transmit failed on link %s", ev.LinkName)
	d.releaseBundle(ev.Bundle, nil)
	ev.reply(nil, nil)
}

// handleBundleReceived delivers an inbound bundle to every matching
// registration (§4.3) and wakes any session waiting on recv/begin_poll.
func (d *Daemon) handleBundleReceived(ev *Event) {
	b := ev.Bundle
	queued, _, _, _ := d.ctx.Regs.Deliver(b.Dest, b)
	d.deliverToSessions(queued)
	ev.reply(nil, nil)
}

func (d *Daemon) handleContactUp(ev *Event) {
	d.metrics.observeContactTransition(ev.LinkName, "OPEN")
	ev.reply(nil, nil)
}

func (d *Daemon) handleContactDown(ev *Event) {
	l, ok := d.ctx.Links.Get(ev.LinkName)
	if ok {
		drained, reconnectAfter, shouldReconnect := l.Broken()
		for _, b := range drained {
			d.releaseBundle(b, nil)
		}
		if shouldReconnect {
			name := ev.LinkName
			d.ctx.HK.Reg("reconnect-"+name, func() time.Duration {
				l.ResetAvailable()
				return hk.UnregInterval
			}, reconnectAfter)
		}
	}
	d.metrics.observeContactTransition(ev.LinkName, "CLOSED")
	ev.reply(nil, nil)
}

func (d *Daemon) handleRouteAdd(ev *Event) {
	d.ctx.Routes.Add(router.Route{Pattern: ev.Pattern, LinkName: ev.LinkName, Action: router.Forward})
	ev.reply(nil, nil)
}

func (d *Daemon) handleRouteDel(ev *Event) {
	if err := d.ctx.Routes.Del(ev.Pattern); err != nil {
		ev.reply(nil, Wrap(NotFound, err))
		return
	}
	ev.reply(nil, nil)
}

// handleDiscoveryPeer admits a peer surfaced by an out-of-process discovery
// driver (§4.11, e.g. k8sdisc) as an OPPORTUNISTIC link candidate, exactly
// as a convergence layer would for an unsolicited inbound connection
// (§4.4). ev.LinkName is the candidate link's generated name, ev.Value its
// next-hop address, ev.Key the convergence layer to use, and ev.Pattern
// the peer's advertised EID. A peer already known by link name is treated
// as a duplicate discovery tick, not an error.
func (d *Daemon) handleDiscoveryPeer(ev *Event) {
	if _, ok := d.ctx.Links.Get(ev.LinkName); ok {
		ev.reply(false, nil)
		return
	}
	l := link.New(ev.LinkName, link.OPPORTUNISTIC, ev.Value, ev.Key, d.linkParams())
	if err := l.SetAvailable(); err != nil {
		ev.reply(nil, Wrap(PolicyReject, err))
		return
	}
	if err := d.ctx.Links.Add(l); err != nil {
		ev.reply(nil, Wrap(PolicyReject, err))
		return
	}
	d.ctx.Routes.Add(router.Route{Pattern: ev.Pattern, LinkName: ev.LinkName, Action: router.Forward})
	d.metrics.observeContactTransition(ev.LinkName, "DISCOVERED")
	ev.reply(true, nil)
}

// linkParams builds link.Params from the live tunables table so a
// discovered or configured link picks up whatever `param set` last wrote,
// instead of link.DefaultParams()'s fixed values.
func (d *Daemon) linkParams() link.Params {
	p := link.DefaultParams()
	c := d.ctx.Config
	if c.BusyQueueDepth > 0 {
		p.BusyQueueDepth = c.BusyQueueDepth
	}
	if c.IdleCloseTime > 0 {
		p.IdleCloseTime = c.IdleCloseTime
	}
	return p
}

// handleParamSet applies a `param set <key> <value>` command (§6) to the
// shared tunables table; custody_retry_factor also updates the already-
// running custody subsystem so new retries pick up the new factor without
// a restart.
func (d *Daemon) handleParamSet(ev *Event) {
	if err := d.ctx.Config.Set(ev.Key, ev.Value); err != nil {
		ev.reply(nil, Wrap(PolicyReject, err))
		return
	}
	if ev.Key == "custody_retry_factor" {
		d.ctx.Custody.SetRetryFactor(d.ctx.Config.CustodyRetryFactor)
	}
	ev.reply(nil, nil)
}

func (d *Daemon) handleParamGet(ev *Event) {
	v, err := d.ctx.Config.Get(ev.Key)
	if err != nil {
		ev.reply(nil, Wrap(NotFound, err))
		return
	}
	ev.reply(v, nil)
}

func (d *Daemon) handleParamDump(ev *Event) {
	ev.reply(d.ctx.Config.Dump(), nil)
}

func (d *Daemon) handleCustodySignal(ev *Event) {
	sig := bundle.CustodySignal{Succeeded: ev.Succeeded}
	outcome := d.ctx.Custody.CustodySignalReceived(sig, ev.Bundle.LocalID)
	if outcome == custody.OutcomeReforward {
		d.metrics.incCustodyRetry()
	}
	ev.reply(outcome, nil)
}
