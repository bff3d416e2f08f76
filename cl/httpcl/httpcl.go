// Package httpcl tunnels the §4.5 framing over long-lived HTTP/1.1
// connections using fasthttp, for deployments where only outbound HTTP
// egress is permitted between nodes (§4.5 expansion). Grounded on the
// teacher's own `transport` package, which streams objects over persistent
// HTTP connections rather than raw sockets.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package httpcl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/cl"
	"github.com/valyala/fasthttp"
)

const Name = "httpcl"

// connectPath is the single endpoint a node's httpcl server listens on; a
// session is one long-lived POST whose request body carries the client's
// outbound bytes and whose (chunked, unbounded) response body carries the
// server's outbound bytes.
const connectPath = "/dtncl/connect"

// duplex adapts a streamed HTTP request/response pair into the
// Read/Write/Close surface cl.Connection expects.
type duplex struct {
	r  io.Reader
	w  io.Writer
	c  io.Closer
	mu sync.Mutex
}

func (d *duplex) Read(p []byte) (int, error)  { return d.r.Read(p) }
func (d *duplex) Write(p []byte) (int, error) { d.mu.Lock(); defer d.mu.Unlock(); return d.w.Write(p) }
func (d *duplex) Close() error {
	if d.c != nil {
		return d.c.Close()
	}
	return nil
}

// Driver implements cl.ConvergenceLayer by tunneling cl's framing over
// fasthttp long-lived connections.
type Driver struct {
	hostClient *fasthttp.HostClient
	server     *fasthttp.Server
	listener   net.Listener

	mtx     sync.Mutex
	inbound chan *duplex
}

func New() *Driver {
	return &Driver{inbound: make(chan *duplex, 8)}
}

func (d *Driver) Name() string { return Name }

// Listen starts the fasthttp server accepting inbound sessions at addr.
func (d *Driver) Listen(addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpcl: listen %s: %w", addr, err)
	}
	d.listener = l
	d.server = &fasthttp.Server{
		Handler:            d.handleSession,
		StreamRequestBody:  true,
		DisableKeepalive:   false,
	}
	go func() {
		if err := d.server.Serve(l); err != nil {
			// Serve returns on listener close; nothing more to do.
			_ = err
		}
	}()
	return nil
}

func (d *Driver) handleSession(ctx *fasthttp.RequestCtx) {
	if string(ctx.Path()) != connectPath {
		ctx.NotFound()
		return
	}
	reqBody := ctx.RequestBodyStream()
	pr, pw := io.Pipe()
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		io.Copy(w, pr)
		w.Flush()
	})
	select {
	case d.inbound <- &duplex{r: reqBody, w: pw, c: pw}:
	case <-time.After(5 * time.Second):
		pw.Close()
	}
}

func (d *Driver) Dial(ctx context.Context, nexthop string, params cl.Params) (*cl.Connection, error) {
	if d.hostClient == nil {
		d.mtx.Lock()
		if d.hostClient == nil {
			d.hostClient = &fasthttp.HostClient{Addr: nexthop}
		}
		d.mtx.Unlock()
	}
	pr, pw := io.Pipe()
	req := fasthttp.AcquireRequest()
	req.Header.SetMethod("POST")
	req.SetRequestURI("http://" + nexthop + connectPath)
	req.SetBodyStream(pr, -1)

	resp := fasthttp.AcquireResponse()
	resp.StreamBody = true

	errCh := make(chan error, 1)
	go func() { errCh <- d.hostClient.Do(req, resp) }()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("httpcl: dial %s: %w", nexthop, err)
		}
	case <-time.After(2 * time.Second):
		// request/response streaming continues in the background via Do;
		// the handshake proceeds over the still-open body streams.
	}

	dx := &duplex{r: resp.BodyStream(), w: pw, c: pw}
	if err := sendContactHeader(dx, params); err != nil {
		dx.Close()
		return nil, err
	}
	if _, err := cl.ReadContactHeader(dx); err != nil {
		dx.Close()
		return nil, err
	}
	return cl.NewConnection(dx, params), nil
}

func (d *Driver) Accept(ctx context.Context) (remoteHint string, c *cl.Connection, err error) {
	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case dx := <-d.inbound:
		params := cl.DefaultParams()
		if _, err := cl.ReadContactHeader(dx); err != nil {
			dx.Close()
			return "", nil, err
		}
		if err := sendContactHeader(dx, params); err != nil {
			dx.Close()
			return "", nil, err
		}
		return "", cl.NewConnection(dx, params), nil
	}
}

func (d *Driver) Close() error {
	if d.listener != nil {
		return d.listener.Close()
	}
	return nil
}

func sendContactHeader(w io.Writer, params cl.Params) error {
	flags := uint8(cl.FlagBlockAckEnabled)
	if params.ReactiveFrag {
		flags |= cl.FlagReactiveFragEnabled
	}
	keepalive := uint16(params.KeepaliveInterval.Seconds())
	return cl.WriteContactHeader(w, cl.ContactHeader{Version: 1, Flags: flags, KeepaliveSeconds: keepalive})
}
