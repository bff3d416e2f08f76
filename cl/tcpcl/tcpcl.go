// Package tcpcl is the primary, always-available convergence layer
// driver: the §4.5 framing run directly over raw TCP sockets.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package tcpcl

import (
	"context"
	"fmt"
	"net"

	"github.com/NVIDIA/aistore/cl"
)

const Name = "tcpcl"

// Driver implements cl.ConvergenceLayer over net.TCPConn.
type Driver struct {
	listener net.Listener
}

// Listen starts accepting inbound connections on addr (empty addr picks an
// ephemeral port, used by tests and by opportunistic-only deployments).
func Listen(addr string) (*Driver, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcpcl: listen %s: %w", addr, err)
	}
	return &Driver{listener: l}, nil
}

func (d *Driver) Name() string { return Name }

func (d *Driver) Addr() string {
	if d.listener == nil {
		return ""
	}
	return d.listener.Addr().String()
}

func (d *Driver) Dial(ctx context.Context, nexthop string, params cl.Params) (*cl.Connection, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", nexthop)
	if err != nil {
		return nil, fmt.Errorf("tcpcl: dial %s: %w", nexthop, err)
	}
	if err := sendContactHeader(conn, params); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := cl.ReadContactHeader(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return cl.NewConnection(conn, params), nil
}

func (d *Driver) Accept(ctx context.Context) (remoteHint string, c *cl.Connection, err error) {
	if d.listener == nil {
		return "", nil, fmt.Errorf("tcpcl: driver is not listening")
	}
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	ch := make(chan acceptResult, 1)
	go func() {
		conn, err := d.listener.Accept()
		ch <- acceptResult{conn, err}
	}()
	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return "", nil, r.err
		}
		params := cl.DefaultParams()
		if _, err := cl.ReadContactHeader(r.conn); err != nil {
			r.conn.Close()
			return "", nil, err
		}
		if err := sendContactHeader(r.conn, params); err != nil {
			r.conn.Close()
			return "", nil, err
		}
		return r.conn.RemoteAddr().String(), cl.NewConnection(r.conn, params), nil
	}
}

func (d *Driver) Close() error {
	if d.listener == nil {
		return nil
	}
	return d.listener.Close()
}

func sendContactHeader(conn net.Conn, params cl.Params) error {
	flags := uint8(cl.FlagBlockAckEnabled)
	if params.ReactiveFrag {
		flags |= cl.FlagReactiveFragEnabled
	}
	keepalive := uint16(params.KeepaliveInterval.Seconds())
	return cl.WriteContactHeader(conn, cl.ContactHeader{Version: 1, Flags: flags, KeepaliveSeconds: keepalive})
}
