// Events: the tagged union dispatched by the daemon's single mutator
// thread (§4.8 "dispatched through a large tagged-union switch to
// per-type handler methods with default no-op implementations").
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package daemon

import (
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/eid"
	"github.com/NVIDIA/aistore/reg"
)

// EventKind is the event's tag (§4.8). Producers are the API adapter, CL
// worker goroutines, and the housekeeping registry; every producer pushes
// through Daemon.Post/PostSync, never touches a table directly.
type EventKind uint8

const (
	// API-adapter calls (§4.9), one event per request type.
	EvOpen EventKind = iota
	EvClose
	EvLocalEID
	EvRegister
	EvUnregister
	EvFindRegistration
	EvBind
	EvSend
	EvRecv
	EvBeginPoll
	EvCancelPoll

	// CL-originated events (§4.5, §7 "Surfaced to the daemon").
	EvBundleTransmitted
	EvBundleTransmitFailed
	EvBundleReceived
	EvPartialReceived
	EvContactUp
	EvContactDown

	// Configuration commands (§6).
	EvInterfaceAdd
	EvInterfaceDel
	EvLinkAdd
	EvLinkDel
	EvLinkOpen
	EvLinkClose
	EvLinkSetAvailable
	EvLinkState
	EvRouteAdd
	EvRouteDel
	EvRouteDump
	EvParamSet
	EvParamGet
	EvParamDump
	EvStorageSet

	// Internal/timer-driven events.
	EvBundleExpired
	EvRegistrationExpired
	EvCustodySignal
	EvUnblocked
	EvDiscoveryPeer
	EvRecvTimeout

	EvShutdown
)

var eventKindNames = [...]string{
	"Open", "Close", "LocalEID", "Register", "Unregister", "FindRegistration",
	"Bind", "Send", "Recv", "BeginPoll", "CancelPoll",
	"BundleTransmitted", "BundleTransmitFailed", "BundleReceived", "PartialReceived",
	"ContactUp", "ContactDown",
	"InterfaceAdd", "InterfaceDel", "LinkAdd", "LinkDel", "LinkOpen", "LinkClose",
	"LinkSetAvailable", "LinkState", "RouteAdd", "RouteDel", "RouteDump",
	"ParamSet", "ParamGet", "ParamDump", "StorageSet",
	"BundleExpired", "RegistrationExpired", "CustodySignal", "Unblocked", "DiscoveryPeer",
	"RecvTimeout",
	"Shutdown",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "Unknown"
}

// ContactDownReason enumerates the §7 reasons a contact goes down.
type ContactDownReason uint8

const (
	ReasonBroken ContactDownReason = iota
	ReasonIdle
	ReasonUser
	ReasonShutdown
	ReasonUnblocked
	ReasonDiscovery
)

// Event is the single struct carrying every variant's payload; unused
// fields are left zero. A nil Notifier means fire-and-forget; a non-nil
// one is closed (after Result/Err are set) once the handler returns,
// giving the API adapter synchronous call semantics (§4.9).
type Event struct {
	Kind EventKind

	// API-adapter fields.
	SessionID    string
	Tag          string
	Pattern      eid.EID
	RegID        uint32
	Action       reg.FailureAction
	BundleSpec   *bundle.Bundle
	Payload      []byte
	Timeout      time.Duration
	AuthToken    string

	// CL fields.
	LinkName string
	Bundle   *bundle.Bundle
	Sent     int64
	Acked    int64
	Reason    ContactDownReason
	Succeeded bool // EvCustodySignal: whether the peer's custody signal reported success
	Conn      any

	// Configuration fields.
	Key   string
	Value string

	// Notifier is set by PostSync; Result and Err are set by reply and
	// read by the caller after the notifier channel closes.
	Notifier chan struct{}
	Result   any
	Err      *Error
}

// reply sets the result/error and, if the caller is waiting, signals
// completion. Called exactly once by the dispatcher after handling.
func (e *Event) reply(result any, err *Error) {
	e.Result, e.Err = result, err
	if e.Notifier != nil {
		close(e.Notifier)
	}
}
