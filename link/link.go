// Package link implements the Link and Contact state machine: the
// lifecycle of a transport to a next hop, across ALWAYSON, ONDEMAND,
// OPPORTUNISTIC and SCHEDULED link types (§4.4).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package link

import (
	"fmt"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/cmn/nlog"
)

// Type distinguishes how a link is opened and kept open (§4.4).
type Type uint8

const (
	ALWAYSON Type = iota
	ONDEMAND
	OPPORTUNISTIC
	SCHEDULED
)

// State is a position in the link lifecycle (§4.4 state table).
type State uint8

const (
	UNAVAILABLE State = iota
	AVAILABLE
	OPENING
	OPEN
	BUSY
	CLOSING
	CLOSED
)

func (s State) String() string {
	switch s {
	case UNAVAILABLE:
		return "UNAVAILABLE"
	case AVAILABLE:
		return "AVAILABLE"
	case OPENING:
		return "OPENING"
	case OPEN:
		return "OPEN"
	case BUSY:
		return "BUSY"
	case CLOSING:
		return "CLOSING"
	case CLOSED:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Params carries the CL-facing and link-level tunables (§5, §6 "param
// set"): busy_queue_depth gates BUSY; idle_close_time applies to ONDEMAND;
// the backoff fields apply to ALWAYSON reconnection.
type Params struct {
	BusyQueueDepth  int
	IdleCloseTime   time.Duration
	BackoffInitial  time.Duration
	BackoffMax      time.Duration
}

func DefaultParams() Params {
	return Params{
		BusyQueueDepth: 64,
		IdleCloseTime:  2 * time.Minute,
		BackoffInitial: time.Second,
		BackoffMax:     time.Minute,
	}
}

// Contact is a single active session on a link.
type Contact struct {
	StartTime time.Time
	Conn      any // opaque *cl.Connection; kept untyped to avoid an import cycle
}

// Link is one configured next-hop transport.
type Link struct {
	mtx sync.Mutex

	Name      string
	Type      Type
	NextHop   string
	CLName    string
	RemoteEID string
	Params    Params

	state   State
	contact *Contact
	backoff time.Duration

	queue []*bundle.Bundle
}

func New(name string, typ Type, nexthop, clName string, params Params) *Link {
	return &Link{
		Name:    name,
		Type:    typ,
		NextHop: nexthop,
		CLName:  clName,
		Params:  params,
		state:   UNAVAILABLE,
		backoff: params.BackoffInitial,
	}
}

func (l *Link) State() State {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.state
}

func (l *Link) QueueDepth() int {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return len(l.queue)
}

// ErrBadTransition is returned when a caller asks for a transition not in
// the §4.4 table from the link's current state.
type ErrBadTransition struct {
	From  State
	Event string
}

func (e *ErrBadTransition) Error() string {
	return fmt.Sprintf("link: invalid transition %q from state %s", e.Event, e.From)
}

// SetAvailable moves UNAVAILABLE -> AVAILABLE (discovery or user request).
func (l *Link) SetAvailable() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.state != UNAVAILABLE {
		return &ErrBadTransition{l.state, "set_available"}
	}
	l.state = AVAILABLE
	return nil
}

// Admit moves AVAILABLE -> OPEN directly, for a contact that already
// exists when the link is created: an inbound connection a convergence
// layer just accepted (§4.4/§4.5 "the opportunistic link hook"), as
// opposed to Enqueue+OpenSucceeded's two-step dial-then-confirm path for
// an outbound contact that doesn't exist yet.
func (l *Link) Admit(conn any) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.state != AVAILABLE {
		return &ErrBadTransition{l.state, "admit"}
	}
	l.state = OPEN
	l.contact = &Contact{StartTime: time.Now(), Conn: conn}
	l.backoff = l.Params.BackoffInitial
	return nil
}

// Connect moves AVAILABLE -> OPENING with no bundle to enqueue: an
// ALWAYSON link reopening proactively (handleContactDown's reconnect
// timer, or initial startup) rather than in response to outbound traffic,
// which is what Enqueue's own AVAILABLE -> OPENING branch is for.
func (l *Link) Connect() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.state != AVAILABLE {
		return &ErrBadTransition{l.state, "connect"}
	}
	l.state = OPENING
	return nil
}

// Enqueue appends a bundle to the link's pending FIFO, opening the link if
// it is AVAILABLE (outbound bundle queued), and returning whether the link
// crossed into BUSY as a result (§4.4 table, §4.5 "Backpressure").
func (l *Link) Enqueue(b *bundle.Bundle) (becameBusy bool, err error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	switch l.state {
	case AVAILABLE:
		l.state = OPENING
	case OPEN, BUSY:
		// already open; fall through to enqueue
	default:
		return false, &ErrBadTransition{l.state, "enqueue"}
	}
	b.Retain()
	l.queue = append(l.queue, b)
	if l.state == OPEN && len(l.queue) >= l.Params.BusyQueueDepth {
		l.state = BUSY
		becameBusy = true
	}
	return becameBusy, nil
}

// Dequeue pops the next bundle for transmission, demoting BUSY back to
// OPEN once the queue drains below threshold.
func (l *Link) Dequeue() (*bundle.Bundle, bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	b := l.queue[0]
	l.queue = l.queue[1:]
	if l.state == BUSY && len(l.queue) < l.Params.BusyQueueDepth {
		l.state = OPEN
	}
	return b, true
}

// OpenSucceeded transitions OPENING -> OPEN, recording the new contact and
// resetting the reconnection backoff.
func (l *Link) OpenSucceeded(conn any) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.state != OPENING {
		return &ErrBadTransition{l.state, "open_succeeded"}
	}
	l.state = OPEN
	l.contact = &Contact{StartTime: time.Now(), Conn: conn}
	l.backoff = l.Params.BackoffInitial
	return nil
}

// OpenFailed transitions OPENING -> UNAVAILABLE, scheduling reconnection
// via the returned backoff duration if this is an ALWAYSON link.
func (l *Link) OpenFailed() (reconnectAfter time.Duration, shouldReconnect bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.state = UNAVAILABLE
	l.contact = nil
	if l.Type != ALWAYSON {
		return 0, false
	}
	d := l.backoff
	l.backoff *= 2
	if l.backoff > l.Params.BackoffMax {
		l.backoff = l.Params.BackoffMax
	}
	return d, true
}

// Broken transitions OPEN/BUSY -> CLOSED (CL reports the connection gone),
// or to UNAVAILABLE for an ONDEMAND link, draining the pending queue and
// reporting whether an ALWAYSON reconnection should be scheduled.
func (l *Link) Broken() (drained []*bundle.Bundle, reconnectAfter time.Duration, shouldReconnect bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.state != OPEN && l.state != BUSY {
		nlog.Warningf("link %s: Broken called from state %s", l.Name, l.state)
	}
	l.state = CLOSED
	drained = l.queue
	l.queue = nil
	l.contact = nil
	if l.Type == ALWAYSON {
		d := l.backoff
		l.backoff *= 2
		if l.backoff > l.Params.BackoffMax {
			l.backoff = l.Params.BackoffMax
		}
		return drained, d, true
	}
	if l.Type == ONDEMAND {
		l.state = UNAVAILABLE
	}
	return drained, 0, false
}

// ResetAvailable moves CLOSED -> AVAILABLE once a scheduled reconnect
// delay has elapsed, the counterpart to the reconnectAfter/shouldReconnect
// pair Broken returns for an ALWAYSON link: the caller is expected to
// run this from a one-shot timer rather than immediately, so a flapping
// peer doesn't get redialed in a tight loop.
func (l *Link) ResetAvailable() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.state == CLOSED {
		l.state = AVAILABLE
	}
}

// Close begins a user-requested CLOSING -> CLOSED transition.
func (l *Link) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	switch l.state {
	case OPEN, BUSY:
		l.state = CLOSING
		return nil
	default:
		return &ErrBadTransition{l.state, "close"}
	}
}

// Closed completes a user-requested close, returning to UNAVAILABLE so the
// link can be reopened later.
func (l *Link) Closed() {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.state = UNAVAILABLE
	l.contact = nil
}
