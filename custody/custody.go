// Package custody implements the custody transfer reliability subsystem:
// custodian handoff, retransmission timers scheduled on the shared
// housekeeping registry, and custody signal processing (§4.6).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package custody

import (
	"fmt"
	"sync"
	"time"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/hk"
)

// DefaultRetryFactor is retry_factor pinned per SPEC_FULL.md §4.6: the
// retransmission timer fires after expiration/retry_factor. Exposed as the
// `custody_retry_factor` tunable (`param set`).
const DefaultRetryFactor = 4

// MaxAttempts bounds re-forwards after a failed custody signal before the
// bundle is dropped (§4.6 "after a configurable number of failed
// attempts, emit a deletion status report ... and drop").
const MaxAttempts = 8

// Outcome is what the caller should do after a custody event.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeReforward
	OutcomeReleaseAndDrop
	OutcomeEmitDeletionReport
)

type record struct {
	bundleID   uint64
	subject    bundle.Identity
	attempts   int
	retryFactor int
}

// Subsystem tracks in-flight custody acceptances and their retransmission
// timers.
type Subsystem struct {
	mtx         sync.Mutex
	hk          *hk.HK
	byBundleID  map[uint64]*record
	retryFactor int

	// Reforward is called by the timer callback when a retransmission is
	// due; it runs on hk's single goroutine, so it must not block.
	Reforward func(bundleID uint64)
}

func NewSubsystem(h *hk.HK, retryFactor int) *Subsystem {
	if retryFactor <= 0 {
		retryFactor = DefaultRetryFactor
	}
	return &Subsystem{hk: h, byBundleID: make(map[uint64]*record), retryFactor: retryFactor}
}

// SetRetryFactor updates the factor new AcceptCustody calls use; in-flight
// timers already scheduled keep their original timeout (§6 `param set
// custody_retry_factor` only affects custody accepted from that point on).
func (s *Subsystem) SetRetryFactor(retryFactor int) {
	if retryFactor <= 0 {
		retryFactor = DefaultRetryFactor
	}
	s.mtx.Lock()
	s.retryFactor = retryFactor
	s.mtx.Unlock()
}

func timerName(bundleID uint64) string { return fmt.Sprintf("custody-%d", bundleID) }

// AcceptCustody records this node as the current custodian of b and starts
// its retransmission timer T = expiration/retry_factor (§4.6).
func (s *Subsystem) AcceptCustody(b *bundle.Bundle) {
	s.mtx.Lock()
	rec := &record{bundleID: b.LocalID, subject: b.ID, retryFactor: s.retryFactor}
	s.byBundleID[b.LocalID] = rec
	s.mtx.Unlock()

	timeout := time.Duration(b.Lifetime) * time.Second / time.Duration(rec.retryFactor)
	if timeout <= 0 {
		timeout = time.Second
	}
	s.hk.Reg(timerName(b.LocalID), func() time.Duration {
		return s.onTimer(b.LocalID, timeout)
	}, timeout)
}

func (s *Subsystem) onTimer(bundleID uint64, timeout time.Duration) time.Duration {
	s.mtx.Lock()
	rec, ok := s.byBundleID[bundleID]
	s.mtx.Unlock()
	if !ok {
		return hk.UnregInterval // custody already released
	}
	rec.attempts++
	if s.Reforward != nil {
		s.Reforward(bundleID)
	}
	if rec.attempts >= MaxAttempts {
		s.mtx.Lock()
		delete(s.byBundleID, bundleID)
		s.mtx.Unlock()
		return hk.UnregInterval
	}
	return timeout
}

// CustodySignalReceived processes an incoming custody signal (§4.6): on
// success it cancels the timer and releases the bundle; on failure it
// leaves the record for the next timer-driven re-forward, or reports
// OutcomeEmitDeletionReport once MaxAttempts has been exceeded.
func (s *Subsystem) CustodySignalReceived(sig bundle.CustodySignal, bundleID uint64) Outcome {
	s.mtx.Lock()
	rec, ok := s.byBundleID[bundleID]
	s.mtx.Unlock()
	if !ok {
		return OutcomeNone
	}
	if sig.Succeeded {
		s.release(bundleID)
		return OutcomeReleaseAndDrop
	}
	if rec.attempts >= MaxAttempts {
		s.release(bundleID)
		return OutcomeEmitDeletionReport
	}
	return OutcomeReforward
}

func (s *Subsystem) release(bundleID uint64) {
	s.mtx.Lock()
	delete(s.byBundleID, bundleID)
	s.mtx.Unlock()
	s.hk.Unreg(timerName(bundleID))
}

// Pending reports whether a bundle is currently tracked for custody.
func (s *Subsystem) Pending(bundleID uint64) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, ok := s.byBundleID[bundleID]
	return ok
}
