// ConvergenceLayer is the driver interface a transport implements; cl's
// Connection framework is the same for every driver (§4.5 expansion).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cl

import "context"

// ConvergenceLayer opens outbound connections and accepts inbound ones for
// one transport (tcpcl, httpcl, ...). Name matches the `cl` argument to
// `interface add`/`link add` (§6).
type ConvergenceLayer interface {
	Name() string
	// Dial opens an outbound connection to nexthop, returning a live
	// Connection whose Run has not yet been started by the caller.
	Dial(ctx context.Context, nexthop string, params Params) (*Connection, error)
	// Accept blocks until an inbound connection arrives (the opportunistic
	// link hook, §4.5), returning a remote hint (tcpcl: the peer's network
	// address; empty when the driver has none) and a live Connection.
	Accept(ctx context.Context) (remoteHint string, conn *Connection, err error)
	Close() error
}
