// Connection is the generic, transport-agnostic half of a convergence
// layer session: one bundle inflight at a time, cumulative block acks,
// keepalives, idle close, and reactive fragmentation on break (§4.5).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package cl

import (
	"io"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/bpcodec"
	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/cmn/nlog"
)

// wireConn is the minimal socket-like surface a driver must provide; both
// tcpcl and httpcl implement it over their respective transports.
type wireConn interface {
	io.Reader
	io.Writer
	io.Closer
}

// CommandKind tags the downward command queue (§4.5).
type CommandKind uint8

const (
	CmdSendBundle CommandKind = iota
	CmdCancelBundle
	CmdBreakContact
)

type Command struct {
	Kind   CommandKind
	Bundle *bundle.Bundle // CmdSendBundle
	LocalID uint64        // CmdCancelBundle
}

// EventKind tags the upward event stream (§4.5, §3 "Event").
type EventKind uint8

const (
	EvBundleTransmitted EventKind = iota
	EvBundleTransmitFailed
	EvBundleReceived
	EvPartialReceived
	EvContactUp
	EvContactDown
)

type Event struct {
	Kind      EventKind
	Bundle    *bundle.Bundle
	Sent      int64
	Acked     int64
	Err       error
}

// Params are the CL-level tunables (§6 "param set").
type Params struct {
	SendBufLen        int
	RecvBufLen        int
	KeepaliveInterval time.Duration
	DataTimeout       time.Duration
	BlockLength       int
	ReactiveFrag      bool
}

func DefaultParams() Params {
	return Params{
		SendBufLen:        64 * 1024,
		RecvBufLen:        64 * 1024,
		KeepaliveInterval: 30 * time.Second,
		DataTimeout:       2 * time.Minute,
		BlockLength:       16 * 1024,
		ReactiveFrag:      true,
	}
}

// Connection runs one bundle-protocol session on top of a wireConn. Each
// Connection owns a dedicated pair of goroutines (reader, driver) and
// communicates with the daemon exclusively via Commands (in) and Events
// (out), matching §5's "CL worker threads ... communicate with the daemon
// exclusively through events (upward) and the bounded command queue
// (downward)".
type Connection struct {
	conn   wireConn
	params Params

	Commands chan Command
	Events   chan Event

	mtx      sync.Mutex
	inflight []*bundle.Bundle // queued, not yet started
	current  *bundle.Bundle
	currentWire []byte
	sentOffset  int64
	ackedOffset int64

	incoming    *bundle.Bundle
	incomingBuf []byte

	lastTraffic time.Time
	done        chan struct{}
	closeOnce   sync.Once
}

func NewConnection(conn wireConn, params Params) *Connection {
	return &Connection{
		conn:        conn,
		params:      params,
		Commands:    make(chan Command, 64),
		Events:      make(chan Event, 64),
		done:        make(chan struct{}),
		lastTraffic: time.Now(),
	}
}

// Run is the connection's driver loop: it owns the socket end-to-end until
// the connection terminates, draining inflight/incoming/command state on
// the way out (§4.5 "Shutdown").
func (c *Connection) Run() {
	frames := make(chan frameMsg, 16)
	readErrs := make(chan error, 1)
	go c.readLoop(frames, readErrs)

	keepaliveTicker := time.NewTicker(c.params.KeepaliveInterval)
	defer keepaliveTicker.Stop()
	idleTicker := time.NewTicker(c.params.DataTimeout / 4)
	defer idleTicker.Stop()

	for {
		select {
		case <-c.done:
			c.drain(nil)
			return
		case cmd := <-c.Commands:
			if !c.handleCommand(cmd) {
				c.drain(nil)
				return
			}
		case fm := <-frames:
			c.lastTraffic = time.Now()
			if !c.handleFrame(fm) {
				c.drain(nil)
				return
			}
		case err := <-readErrs:
			c.drain(err)
			return
		case <-keepaliveTicker.C:
			if time.Since(c.lastTraffic) >= c.params.KeepaliveInterval {
				if err := WriteFrame(c.conn, Keepalive, nil); err != nil {
					c.drain(err)
					return
				}
				c.lastTraffic = time.Now()
			}
		case <-idleTicker.C:
			if time.Since(c.lastTraffic) >= c.params.DataTimeout {
				nlog.Warningf("cl: connection idle past data_timeout, closing")
				c.drain(nil)
				return
			}
		}
		c.pump()
	}
}

// Close requests the connection terminate; safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Connection) handleCommand(cmd Command) bool {
	switch cmd.Kind {
	case CmdSendBundle:
		c.mtx.Lock()
		c.inflight = append(c.inflight, cmd.Bundle)
		c.mtx.Unlock()
		return true
	case CmdCancelBundle:
		return c.cancel(cmd.LocalID)
	case CmdBreakContact:
		_ = WriteFrame(c.conn, Shutdown, nil)
		return false
	}
	return true
}

// cancel removes a not-yet-started bundle, or — if it is the one
// currently in flight — lets the current block finish and then stops,
// treating the partial as reactive fragmentation input (§4.5
// "Cancellation").
func (c *Connection) cancel(localID uint64) bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for i, b := range c.inflight {
		if b.LocalID == localID {
			c.inflight = append(c.inflight[:i], c.inflight[i+1:]...)
			return true
		}
	}
	if c.current != nil && c.current.LocalID == localID {
		c.reactiveFragmentSend()
		c.current = nil
	}
	return true
}

// pump sends the next inflight bundle whole: START_BUNDLE, then every
// DATA_BLOCK of at most BlockLength bytes in one call, after which it
// reports EvBundleTransmitted with the cumulative ack offset received so
// far. It does not wait for acks, and a block write error ends the bundle
// with EvBundleTransmitFailed instead of being resumed on a later call.
func (c *Connection) pump() {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.current == nil {
		if len(c.inflight) == 0 {
			return
		}
		c.current = c.inflight[0]
		c.inflight = c.inflight[1:]
		wire, err := bpcodec.Format(c.current)
		if err != nil {
			c.Events <- Event{Kind: EvBundleTransmitFailed, Bundle: c.current, Err: err}
			c.current = nil
			return
		}
		c.currentWire = wire
		c.sentOffset = 0
		c.ackedOffset = 0
		_ = WriteFrame(c.conn, StartBundle, bpcodec.EncodeSDNV(nil, uint64(len(wire))))
	}

	for c.sentOffset < int64(len(c.currentWire)) {
		end := c.sentOffset + int64(c.params.BlockLength)
		if end > int64(len(c.currentWire)) {
			end = int64(len(c.currentWire))
		}
		block := c.currentWire[c.sentOffset:end]
		if err := WriteFrame(c.conn, DataBlock, block); err != nil {
			c.Events <- Event{Kind: EvBundleTransmitFailed, Bundle: c.current, Err: err}
			c.current = nil
			return
		}
		c.sentOffset = end
	}
	c.Events <- Event{Kind: EvBundleTransmitted, Bundle: c.current, Sent: c.sentOffset, Acked: c.ackedOffset}
	c.current = nil
}

// reactiveFragmentSend reports the fate of the current outbound bundle when
// its connection ends mid-send: EvBundleTransmitted with Sent and Acked
// both set to the acked byte count when reactive fragmentation is on and
// some bytes were acked, else EvBundleTransmitFailed. No fragment is built
// from the acked prefix and the unacked suffix is not re-enqueued.
func (c *Connection) reactiveFragmentSend() {
	if c.current == nil {
		return
	}
	if !c.params.ReactiveFrag {
		c.Events <- Event{Kind: EvBundleTransmitFailed, Bundle: c.current}
		return
	}
	if c.ackedOffset <= 0 {
		c.Events <- Event{Kind: EvBundleTransmitFailed, Bundle: c.current}
		return
	}
	c.Events <- Event{Kind: EvBundleTransmitted, Bundle: c.current, Sent: c.ackedOffset, Acked: c.ackedOffset}
}

type frameMsg struct {
	typ  FrameType
	data []byte
}

func (c *Connection) readLoop(out chan<- frameMsg, errs chan<- error) {
	for {
		typ, err := ReadFrameType(c.conn)
		if err != nil {
			errs <- err
			return
		}
		var data []byte
		switch typ {
		case Keepalive, Shutdown:
		case AckBlock, StartBundle:
			v, err := ReadSDNV(c.conn)
			if err != nil {
				errs <- err
				return
			}
			data = bpcodec.EncodeSDNV(nil, v)
		case DataBlock:
			n, err := ReadSDNV(c.conn)
			if err != nil {
				errs <- err
				return
			}
			body, err := ReadBody(c.conn, n)
			if err != nil {
				errs <- err
				return
			}
			data = body
		}
		select {
		case out <- frameMsg{typ, data}:
		case <-c.done:
			return
		}
	}
}

func (c *Connection) handleFrame(fm frameMsg) bool {
	switch fm.typ {
	case Keepalive:
		return true
	case Shutdown:
		// peer asked to stop: finish any in-progress read, then close.
		c.finishIncoming(true)
		return false
	case StartBundle:
		total, _, _ := bpcodec.DecodeSDNV(fm.data)
		c.incomingBuf = make([]byte, 0, total)
		return true
	case DataBlock:
		c.incomingBuf = append(c.incomingBuf, fm.data...)
		ack := bpcodec.EncodeSDNV(nil, uint64(len(c.incomingBuf)))
		if err := WriteFrame(c.conn, AckBlock, ack); err != nil {
			return false
		}
		c.tryCompleteIncoming()
		return true
	case AckBlock:
		v, _, _ := bpcodec.DecodeSDNV(fm.data)
		c.mtx.Lock()
		c.ackedOffset = int64(v)
		c.mtx.Unlock()
		return true
	}
	return true
}

func (c *Connection) tryCompleteIncoming() {
	res, err := bpcodec.Parse(c.incomingBuf)
	if err != nil {
		return // not yet complete, or malformed; wait for more bytes
	}
	if res.Consumed != len(c.incomingBuf) {
		return
	}
	c.Events <- Event{Kind: EvBundleReceived, Bundle: res.Bundle}
	c.incomingBuf = nil
}

// finishIncoming emits a partial-receive event for a bundle that was
// partially received past the header when the connection terminates, per
// §4.5 "Shutdown" / "Reactive fragmentation" (receiver side).
func (c *Connection) finishIncoming(reactiveFragOK bool) {
	if len(c.incomingBuf) == 0 {
		return
	}
	if !reactiveFragOK || !c.params.ReactiveFrag {
		c.incomingBuf = nil
		return
	}
	res, err := bpcodec.Parse(c.incomingBuf)
	if err == nil {
		c.Events <- Event{Kind: EvBundleReceived, Bundle: res.Bundle}
	} else {
		c.Events <- Event{Kind: EvPartialReceived, Sent: int64(len(c.incomingBuf))}
	}
	c.incomingBuf = nil
}

// drain empties inflight, current and incoming state on termination,
// emitting the appropriate events, then closes the queues (§4.5
// "Shutdown").
func (c *Connection) drain(cause error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.current != nil {
		c.reactiveFragmentSend()
		c.current = nil
	}
	for _, b := range c.inflight {
		c.Events <- Event{Kind: EvBundleTransmitFailed, Bundle: b, Err: cause}
	}
	c.inflight = nil
	c.finishIncoming(true)
drainCmds:
	for {
		select {
		case cmd := <-c.Commands:
			if cmd.Kind == CmdSendBundle {
				c.Events <- Event{Kind: EvBundleTransmitFailed, Bundle: cmd.Bundle, Err: cause}
			}
		default:
			break drainCmds
		}
	}
	_ = c.conn.Close()
	close(c.Events)
}
