// Proactive fragmentation and reassembly (§4.1).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package bpcodec

import (
	"fmt"
	"sort"

	"github.com/NVIDIA/aistore/bundle"
)

// Fragment splits b at split bytes into its payload, producing a head
// bundle covering [0, split) and a tail covering [split, end). Both carry
// IsFragment; OrigLength is set once, on the first fragment, and carried
// unchanged thereafter. Extension blocks flagged
// FlagReplicateInEveryFragment are copied into both; others appear only
// in the head.
func Fragment(b *bundle.Bundle, split int64) (head, tail *bundle.Bundle, err error) {
	if b.Payload.Mode != bundle.MEMORY {
		return nil, nil, fmt.Errorf("bpcodec: fragment requires an in-memory payload")
	}
	if split <= 0 || split >= b.Payload.Length {
		return nil, nil, fmt.Errorf("bpcodec: split %d out of range [1, %d)", split, b.Payload.Length)
	}

	origLength := b.OrigLength
	if !b.IsFragment {
		origLength = uint64(b.Payload.Length)
	}
	baseOffset := b.FragOffset

	head = cloneForFragment(b, origLength, baseOffset)
	head.Payload = bundle.Payload{Mode: bundle.MEMORY, Length: split, Received: split, Mem: b.Payload.Mem[:split]}
	tail = cloneForFragment(b, origLength, baseOffset+uint64(split))
	tail.Payload = bundle.Payload{Mode: bundle.MEMORY, Length: b.Payload.Length - split, Received: b.Payload.Length - split, Mem: b.Payload.Mem[split:]}

	for _, eb := range b.Ext {
		head.Ext = append(head.Ext, eb)
		if eb.Flags&bundle.FlagReplicateInEveryFragment != 0 {
			tail.Ext = append(tail.Ext, eb)
		}
	}
	return head, tail, nil
}

func cloneForFragment(b *bundle.Bundle, origLength, fragOffset uint64) *bundle.Bundle {
	c := *b
	c.LocalID = bundle.NewLocalID()
	c.Ext = nil
	c.IsFragment = true
	c.OrigLength = origLength
	c.FragOffset = fragOffset
	return &c
}

// reassemblyKey identifies the bundle a fragment belongs to.
type reassemblyKey struct {
	source     string
	seconds    uint64
	sequence   uint64
	origLength uint64
}

func keyOf(b *bundle.Bundle) reassemblyKey {
	return reassemblyKey{
		source:     b.Source.String(),
		seconds:    b.ID.Timestamp.Seconds,
		sequence:   b.ID.Timestamp.Sequence,
		origLength: b.OrigLength,
	}
}

type interval struct{ start, end uint64 }

// reassembly is the per-bundle-identity accumulation record.
type reassembly struct {
	template  *bundle.Bundle
	intervals []interval
	data      []byte
	extSeen   map[bundle.ExtBlockType]bundle.ExtBlock
}

// Reassembler accumulates arriving fragments and emits a completed bundle
// once the union of received intervals covers [0, orig_length).
type Reassembler struct {
	pending map[reassemblyKey]*reassembly
}

func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[reassemblyKey]*reassembly)}
}

// Add merges one arriving fragment into its reassembly record, returning
// the completed bundle once the received intervals cover every byte of
// [0, orig_length); otherwise it returns (nil, false). Completion depends
// on byte coverage alone: extension blocks are collected from the
// fragments as they arrive but are not checked for completeness.
func (r *Reassembler) Add(frag *bundle.Bundle) (*bundle.Bundle, bool) {
	if !frag.IsFragment {
		return frag, true
	}
	k := keyOf(frag)
	rec, ok := r.pending[k]
	if !ok {
		rec = &reassembly{
			template: frag,
			data:     make([]byte, frag.OrigLength),
			extSeen:  make(map[bundle.ExtBlockType]bundle.ExtBlock),
		}
		r.pending[k] = rec
	}

	copy(rec.data[frag.FragOffset:], frag.Payload.Mem)
	rec.intervals = append(rec.intervals, interval{frag.FragOffset, frag.FragOffset + uint64(frag.Payload.Length)})
	for _, eb := range frag.Ext {
		rec.extSeen[eb.Type] = eb
	}

	if !coversAll(rec.intervals, frag.OrigLength) {
		return nil, false
	}

	delete(r.pending, k)
	out := *rec.template
	out.LocalID = bundle.NewLocalID()
	out.IsFragment = false
	out.FragOffset = 0
	out.Payload = bundle.Payload{Mode: bundle.MEMORY, Length: int64(frag.OrigLength), Received: int64(frag.OrigLength), Mem: rec.data}
	out.Ext = out.Ext[:0]
	for _, eb := range rec.extSeen {
		out.Ext = append(out.Ext, eb)
	}
	return &out, true
}

func coversAll(ivs []interval, total uint64) bool {
	if total == 0 {
		return true
	}
	sorted := append([]interval(nil), ivs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	var covered uint64
	for _, iv := range sorted {
		if iv.start > covered {
			return false
		}
		if iv.end > covered {
			covered = iv.end
		}
	}
	return covered >= total
}
