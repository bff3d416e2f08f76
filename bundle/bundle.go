// Package bundle defines the in-memory bundle record, its payload storage
// modes, and the delivery-status record types carried as administrative
// bundles (§3, §4.1).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package bundle

import (
	"fmt"
	"sync/atomic"

	"github.com/NVIDIA/aistore/eid"
)

// Priority classifies a bundle for link-queue ordering.
type Priority uint8

const (
	Bulk Priority = iota
	Normal
	Expedited
	Reserved
)

// DeliveryOpts is the bitset of optional processing requests on a bundle.
type DeliveryOpts uint16

const (
	OptCustody DeliveryOpts = 1 << iota
	OptDeliveryReceipt
	OptReceiveReceipt
	OptForwardReceipt
	OptCustodyReceipt
	OptDeletionReceipt
	OptSingletonDestination
	OptDoNotFragment
)

func (o DeliveryOpts) Has(flag DeliveryOpts) bool { return o&flag != 0 }

// ExtBlockType enumerates extension block kinds. PAYLOAD is reserved for
// the trailing payload block, never an extension block proper.
type ExtBlockType uint8

const (
	ExtPayload ExtBlockType = iota
	ExtMetadata
	ExtSequenceID
)

// ExtBlockFlags is the per-extension-block processing-control bitset.
type ExtBlockFlags uint16

const (
	FlagReplicateInEveryFragment ExtBlockFlags = 1 << iota
	FlagTransmitStatusIfCannotProcess
	FlagDeleteBundleIfCannotProcess
	FlagLastBlock
	FlagDiscardIfCannotProcess
	FlagForwardedWithoutBeingProcessed
)

// ExtBlock is one extension or payload block: a type tag, processing-control
// flags, and opaque bytes.
type ExtBlock struct {
	Type  ExtBlockType
	Flags ExtBlockFlags
	Data  []byte
}

// PayloadMode selects how a bundle's payload bytes are held.
type PayloadMode uint8

const (
	// MEMORY holds the payload inline, used below payload_mem_threshold.
	MEMORY PayloadMode = iota
	// FILE stores the payload in a daemon-owned file, opened on demand.
	FILE
	// NODATA simulates a payload of a given length with no actual bytes,
	// used for load-testing tools.
	NODATA
)

// Payload is a bundle's data segment: either inline bytes, a path to a
// daemon-owned file, or (NODATA) nothing at all.
type Payload struct {
	Mode PayloadMode
	// Length is the declared total length. Received tracks progress for
	// an in-progress receive; Received == Length once complete.
	Length   int64
	Received int64
	Mem      []byte // MEMORY mode
	Path     string // FILE mode: basename under the payload directory
}

func (p *Payload) Complete() bool { return p.Received >= p.Length }

// Timestamp is a DTN creation timestamp: seconds since the DTN epoch plus a
// per-second sequence number disambiguating bundles created in the same
// second by the same source.
type Timestamp struct {
	Seconds  uint64
	Sequence uint64
}

func (t Timestamp) Equal(o Timestamp) bool { return t.Seconds == o.Seconds && t.Sequence == o.Sequence }

// Identity is the transmitted bundle identity: source EID plus creation
// timestamp. It is the key used by the reassembler and by dedup.
type Identity struct {
	Source    eid.EID
	Timestamp Timestamp
}

var nextLocalID uint64

// NewLocalID allocates a process-local bundle id (never transmitted).
func NewLocalID() uint64 { return atomic.AddUint64(&nextLocalID, 1) }

// Bundle is the daemon's in-memory record for one bundle.
type Bundle struct {
	LocalID uint64
	ID      Identity

	Source    eid.EID
	Dest      eid.EID
	ReplyTo   eid.EID
	Custodian eid.EID

	Priority Priority
	Opts     DeliveryOpts
	Lifetime uint64 // seconds after creation

	IsFragment bool
	FragOffset uint64
	OrigLength uint64

	Ext     []ExtBlock
	Payload Payload

	// refcount tracks queue membership (registration FIFOs, link FIFOs,
	// inflight/incoming lists); the bundle is eligible for deletion from
	// the store only once it reaches zero (§3 lifecycle).
	refcount int32
}

func (b *Bundle) Retain() { atomic.AddInt32(&b.refcount, 1) }

// Release drops one reference and reports whether the bundle has now
// reached zero outstanding references.
func (b *Bundle) Release() bool { return atomic.AddInt32(&b.refcount, -1) <= 0 }

func (b *Bundle) Refcount() int32 { return atomic.LoadInt32(&b.refcount) }

func (b *Bundle) String() string {
	return fmt.Sprintf("bundle[%d %s->%s ts=%d.%d len=%d]",
		b.LocalID, b.Source, b.Dest, b.ID.Timestamp.Seconds, b.ID.Timestamp.Sequence, b.Payload.Length)
}

// DedupKey computes the 64-bit identity hash used for O(1) duplicate checks
// ahead of the authoritative store lookup (§3 expansion, Idempotent
// delivery law §8): source EID + creation timestamp + fragment offset +
// original length.
func (b *Bundle) DedupKey() uint64 {
	h := fnv64a(b.Source.String())
	h = fnv64aUint(h, b.ID.Timestamp.Seconds)
	h = fnv64aUint(h, b.ID.Timestamp.Sequence)
	h = fnv64aUint(h, b.FragOffset)
	h = fnv64aUint(h, b.OrigLength)
	return h
}

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

func fnv64a(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

func fnv64aUint(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h ^= v & 0xff
		h *= fnvPrime64
		v >>= 8
	}
	return h
}

// RecordType distinguishes the administrative-record payload kinds carried
// by status-report and custody-signal bundles.
type RecordType uint8

const (
	RecordStatusReport RecordType = iota
	RecordCustodySignal
)

// StatusFlags is the bitset of status-report events being reported.
type StatusFlags uint8

const (
	StatusReceived StatusFlags = 1 << iota
	StatusCustodyAccepted
	StatusForwarded
	StatusDelivered
	StatusDeleted
	StatusAckedByApp
)

// ReasonCode explains why a status report or custody signal was generated.
type ReasonCode uint8

const (
	ReasonNoInfo ReasonCode = iota
	ReasonLifetimeExpired
	ReasonForwardedUnidirLink
	ReasonTransmissionCancelled
	ReasonDepletedStorage
	ReasonEIDUnintelligible
	ReasonNoRoute
	ReasonNoTimelyContact
	ReasonBlockUnintelligible
)

// StatusReport is the administrative record carried as the payload of a
// status-report bundle.
type StatusReport struct {
	Flags      StatusFlags
	Reason     ReasonCode
	Times      map[StatusFlags]Timestamp
	FragOffset uint64
	FragLength uint64
	IsFragment bool
	Subject    Identity
}

// CustodySignal is the administrative record carried as the payload of a
// custody-signal bundle.
type CustodySignal struct {
	Succeeded bool
	Reason    ReasonCode
	Subject   Identity
}
