// Daemon: the bounded event queue and the single mutator goroutine that
// drains it (§4.8, §5 "One authoritative mutator"). Grounded on
// dsort/dsort.go's errgroup-fanned-out shutdown, translated from a
// per-job worker fan-out into a per-link contact-close fan-out.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package daemon

import (
	"context"
	"time"

	"github.com/NVIDIA/aistore/cmn/nlog"
	"golang.org/x/sync/errgroup"
)

// QueueDepth bounds the event queue (§5 resource limits apply to command
// queues generally; the event queue itself is sized the same way).
const QueueDepth = 1024

// Daemon owns the event queue and the DaemonContext. Run must be invoked
// from exactly one goroutine; every other goroutine in the process talks
// to the daemon only via Post/PostSync.
type Daemon struct {
	ctx     *DaemonContext
	metrics *Metrics
	events  chan *Event
	stopped chan struct{}

	// CloseContact is invoked once per configured link during Shutdown,
	// fanned out with errgroup so every contact drains concurrently
	// before final state is persisted (§5 "Cancellation").
	CloseContact func(linkName string) error
}

func New(ctx *DaemonContext, metrics *Metrics) *Daemon {
	return &Daemon{
		ctx:     ctx,
		metrics: metrics,
		events:  make(chan *Event, QueueDepth),
		stopped: make(chan struct{}),
	}
}

// Post enqueues ev without waiting for it to be handled.
func (d *Daemon) Post(ev *Event) {
	d.events <- ev
	d.metrics.setEventQueueDepth(len(d.events))
}

// PostSync enqueues ev and blocks until the dispatcher has handled it,
// giving the API adapter synchronous call semantics (§4.9).
func (d *Daemon) PostSync(ev *Event) (any, *Error) {
	ev.Notifier = make(chan struct{})
	d.Post(ev)
	<-ev.Notifier
	return ev.Result, ev.Err
}

// ReportNodePressure records a node resource pressure sample (§4.11
// expansion, k8s.io/metrics). It updates the prometheus collector directly
// rather than going through the event queue: unlike every other table in
// DaemonContext, a gauge sample carries no state the dispatcher needs to
// serialize.
func (d *Daemon) ReportNodePressure(resource string, ratio float64) {
	d.metrics.setNodePressure(resource, ratio)
}

// ReportDiskThroughput records a per-drive read/write throughput sample
// (stats.DiskSampler), for the same reason ReportNodePressure bypasses the
// event queue.
func (d *Daemon) ReportDiskThroughput(drive string, readBps, writeBps float64) {
	d.metrics.setDiskThroughput(drive, "read", readBps)
	d.metrics.setDiskThroughput(drive, "write", writeBps)
}

// Run drains the event queue until Shutdown closes it. It must run on its
// own goroutine; it is the daemon's sole mutator (§5).
func (d *Daemon) Run() {
	defer close(d.stopped)
	for ev := range d.events {
		start := time.Now()
		d.dispatch(ev)
		d.metrics.observeEventLatency(ev.Kind.String(), time.Since(start).Seconds())
		d.metrics.setEventQueueDepth(len(d.events))
	}
}

// Shutdown drains the event queue, closes every link's contact
// concurrently via errgroup, then stops accepting further events
// (§5 "Daemon shutdown drains events, closes all contacts ..., then
// persists final state").
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.Post(&Event{Kind: EvShutdown})

	g, _ := errgroup.WithContext(ctx)
	for _, l := range d.ctx.Links.All() {
		name := l.Name
		if d.CloseContact != nil {
			g.Go(func() error { return d.CloseContact(name) })
		}
	}
	if err := g.Wait(); err != nil {
		nlog.Errorf("daemon: shutdown: closing contacts: %v", err)
	}

	close(d.events)
	<-d.stopped

	if d.ctx.Store != nil {
		d.ctx.Store.Close()
	}
	return nil
}
