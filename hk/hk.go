// Package hk provides mechanism for registering cleanup
// functions which are invoked at specified intervals.
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package hk

import (
	"container/heap"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/cmn/debug"
)

// UnregInterval, returned by a registered function, removes the entry
// instead of rescheduling it.
const UnregInterval = time.Duration(-1)

type request struct {
	name     string
	f        func() time.Duration
	interval time.Duration
	unreg    string
}

type entry struct {
	name    string
	f       func() time.Duration
	fireAt  time.Time
	index   int // heap.Interface bookkeeping
}

type timerHeap []*entry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *timerHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// HK is a single-threaded housekeeping timer registry: all registered
// functions run on one goroutine, one at a time, so cleanup callbacks never
// need their own synchronization against each other.
type HK struct {
	reqs    chan request
	byName  map[string]*entry
	heap    timerHeap
	started chan struct{}
	once    sync.Once
	stop    chan struct{}
}

// DefaultHK is the process-wide registry; daemon startup calls Run on it
// in a dedicated goroutine.
var DefaultHK = New()

func New() *HK {
	return &HK{
		reqs:    make(chan request, 64),
		byName:  make(map[string]*entry),
		started: make(chan struct{}),
		stop:    make(chan struct{}),
	}
}

// Reg registers f to be invoked after interval, and again after whatever
// duration f itself returns (UnregInterval to stop rescheduling).
func (h *HK) Reg(name string, f func() time.Duration, interval time.Duration) {
	h.reqs <- request{name: name, f: f, interval: interval}
}

// Unreg removes a previously registered entry; a no-op if name is unknown.
func (h *HK) Unreg(name string) {
	h.reqs <- request{unreg: name}
}

// WaitStarted blocks until Run has begun processing requests.
func (h *HK) WaitStarted() { <-h.started }

// Stop terminates Run.
func (h *HK) Stop() { close(h.stop) }

// Run is the registry's single goroutine: it services registration
// requests and fires due entries until Stop is called.
func (h *HK) Run() {
	h.once.Do(func() { close(h.started) })
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	for {
		h.resetTimer(timer)
		select {
		case <-h.stop:
			return
		case req := <-h.reqs:
			h.handleRequest(req)
		case <-timer.C:
			h.fireDue()
		}
	}
}

func (h *HK) handleRequest(req request) {
	if req.unreg != "" {
		if e, ok := h.byName[req.unreg]; ok {
			heap.Remove(&h.heap, e.index)
			delete(h.byName, req.unreg)
		}
		return
	}
	if old, ok := h.byName[req.name]; ok {
		heap.Remove(&h.heap, old.index)
	}
	e := &entry{name: req.name, f: req.f, fireAt: time.Now().Add(req.interval)}
	h.byName[req.name] = e
	heap.Push(&h.heap, e)
}

func (h *HK) resetTimer(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	if len(h.heap) == 0 {
		timer.Reset(time.Hour)
		return
	}
	d := time.Until(h.heap[0].fireAt)
	if d < 0 {
		d = 0
	}
	timer.Reset(d)
}

func (h *HK) fireDue() {
	now := time.Now()
	for len(h.heap) > 0 && !h.heap[0].fireAt.After(now) {
		e := heap.Pop(&h.heap).(*entry)
		delete(h.byName, e.name)
		debug.Assert(e.f != nil)
		next := e.f()
		if next == UnregInterval {
			continue
		}
		e.fireAt = now.Add(next)
		h.byName[e.name] = e
		heap.Push(&h.heap, e)
	}
}

// TestInit resets DefaultHK for a fresh test run, matching the contract
// implied by the suite's TestMain-style bootstrap (hk.TestInit() then
// go hk.DefaultHK.Run(); hk.WaitStarted()).
func TestInit() {
	DefaultHK = New()
}

// Reg/Unreg convenience wrappers against DefaultHK.
func Reg(name string, f func() time.Duration, interval time.Duration) { DefaultHK.Reg(name, f, interval) }
func Unreg(name string)                                               { DefaultHK.Unreg(name) }
func WaitStarted()                                                    { DefaultHK.WaitStarted() }
