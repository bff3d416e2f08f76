// Block and primary-header framing on top of sdnv.go (§4.1).
/*
 * Copyright (c) 2018-2026, NVIDIA CORPORATION. All rights reserved.
 */
package bpcodec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/NVIDIA/aistore/bundle"
	"github.com/NVIDIA/aistore/eid"
)

const wireVersion byte = 1

// Decoder errors (§4.1 "Decoder contract").
var (
	ErrParseShort   = errors.New("bpcodec: fewer bytes than declared")
	ErrParseBadFlags = errors.New("bpcodec: reserved or contradictory flag bits")
	ErrParseBadDict  = errors.New("bpcodec: out-of-range dictionary offset")
	ErrParseBadVersion = errors.New("bpcodec: unknown version")
)

// primaryFlags mirrors bundle.DeliveryOpts plus the fields that are not
// part of the in-memory DeliveryOpts bitset (is_fragment, singleton is
// folded into OptSingletonDestination, priority occupies two bits).
type primaryFlags uint64

const (
	pfIsFragment primaryFlags = 1 << iota
	pfDoNotFragment
	pfCustody
	pfDeliveryReceipt
	pfReceiveReceipt
	pfForwardReceipt
	pfCustodyReceipt
	pfDeletionReceipt
	pfSingletonDestination
	pfPriorityShift // marks bit 9: priority occupies bits 9-10
)

func encodePrimaryFlags(b *bundle.Bundle) primaryFlags {
	var f primaryFlags
	if b.IsFragment {
		f |= pfIsFragment
	}
	if b.Opts.Has(bundle.OptDoNotFragment) {
		f |= pfDoNotFragment
	}
	if b.Opts.Has(bundle.OptCustody) {
		f |= pfCustody
	}
	if b.Opts.Has(bundle.OptDeliveryReceipt) {
		f |= pfDeliveryReceipt
	}
	if b.Opts.Has(bundle.OptReceiveReceipt) {
		f |= pfReceiveReceipt
	}
	if b.Opts.Has(bundle.OptForwardReceipt) {
		f |= pfForwardReceipt
	}
	if b.Opts.Has(bundle.OptCustodyReceipt) {
		f |= pfCustodyReceipt
	}
	if b.Opts.Has(bundle.OptDeletionReceipt) {
		f |= pfDeletionReceipt
	}
	if b.Opts.Has(bundle.OptSingletonDestination) {
		f |= pfSingletonDestination
	}
	f |= primaryFlags(b.Priority) << 9
	return f
}

func decodePrimaryFlags(f primaryFlags) (isFragment bool, opts bundle.DeliveryOpts, pri bundle.Priority) {
	isFragment = f&pfIsFragment != 0
	if f&pfDoNotFragment != 0 {
		opts |= bundle.OptDoNotFragment
	}
	if f&pfCustody != 0 {
		opts |= bundle.OptCustody
	}
	if f&pfDeliveryReceipt != 0 {
		opts |= bundle.OptDeliveryReceipt
	}
	if f&pfReceiveReceipt != 0 {
		opts |= bundle.OptReceiveReceipt
	}
	if f&pfForwardReceipt != 0 {
		opts |= bundle.OptForwardReceipt
	}
	if f&pfCustodyReceipt != 0 {
		opts |= bundle.OptCustodyReceipt
	}
	if f&pfDeletionReceipt != 0 {
		opts |= bundle.OptDeletionReceipt
	}
	if f&pfSingletonDestination != 0 {
		opts |= bundle.OptSingletonDestination
	}
	pri = bundle.Priority((f >> 9) & 0x3)
	return
}

// dict packs each distinct EID string exactly once, returning the packed
// bytes and a lookup from string to its byte offset (§4.1 "canonical
// serialization": dictionary contains each distinct EID exactly once).
type dict struct {
	buf    bytes.Buffer
	offset map[string]uint64
}

func newDict() *dict { return &dict{offset: make(map[string]uint64)} }

func (d *dict) put(s string) uint64 {
	if off, ok := d.offset[s]; ok {
		return off
	}
	off := uint64(d.buf.Len())
	d.offset[s] = off
	d.buf.WriteString(s)
	d.buf.WriteByte(0)
	return off
}

func (d *dict) refPair(e eid.EID) (schemeOff, sspOff uint64) {
	return d.put(e.Scheme()), d.put(e.SSP())
}

func lookupDictString(packed []byte, offset uint64) (string, error) {
	if offset >= uint64(len(packed)) {
		return "", ErrParseBadDict
	}
	end := bytes.IndexByte(packed[offset:], 0)
	if end < 0 {
		return "", ErrParseBadDict
	}
	return string(packed[offset : offset+uint64(end)]), nil
}

// Format produces the canonical serialization of a bundle: primary block,
// extension blocks in source-assigned order, then the payload block, which
// as the final block is the only one carrying the last-block flag.
func Format(b *bundle.Bundle) ([]byte, error) {
	d := newDict()
	srcSch, srcSSP := d.refPair(b.Source)
	dstSch, dstSSP := d.refPair(b.Dest)
	rtSch, rtSSP := d.refPair(b.ReplyTo)
	cstSch, cstSSP := d.refPair(b.Custodian)

	var body bytes.Buffer
	writeSDNVBuf(&body, uint64(encodePrimaryFlags(b)))
	writeSDNVBuf(&body, dstSch)
	writeSDNVBuf(&body, dstSSP)
	writeSDNVBuf(&body, srcSch)
	writeSDNVBuf(&body, srcSSP)
	writeSDNVBuf(&body, rtSch)
	writeSDNVBuf(&body, rtSSP)
	writeSDNVBuf(&body, cstSch)
	writeSDNVBuf(&body, cstSSP)
	writeSDNVBuf(&body, b.ID.Timestamp.Seconds)
	writeSDNVBuf(&body, b.ID.Timestamp.Sequence)
	writeSDNVBuf(&body, b.Lifetime)
	if b.IsFragment {
		writeSDNVBuf(&body, b.FragOffset)
		writeSDNVBuf(&body, b.OrigLength)
	}

	var out bytes.Buffer
	out.WriteByte(wireVersion)
	dictBytes := d.buf.Bytes()
	writeSDNVBuf(&out, uint64(len(dictBytes)))
	out.Write(dictBytes)
	writeSDNVBuf(&out, uint64(body.Len()))
	out.Write(body.Bytes())

	for _, eb := range b.Ext {
		flags := eb.Flags &^ bundle.FlagLastBlock
		writeBlock(&out, byte(eb.Type), uint64(flags), eb.Data)
	}
	if b.Payload.Mode == bundle.MEMORY {
		writeBlock(&out, byte(bundle.ExtPayload), uint64(bundle.FlagLastBlock), b.Payload.Mem)
	} else {
		// FILE/NODATA payloads are framed with a zero-length placeholder;
		// the actual bytes are streamed separately by the convergence
		// layer (§4.5), which knows how to read from the payload file.
		writeBlock(&out, byte(bundle.ExtPayload), uint64(bundle.FlagLastBlock), nil)
	}
	return out.Bytes(), nil
}

func writeSDNVBuf(b *bytes.Buffer, v uint64) { b.Write(EncodeSDNV(nil, v)) }

func writeBlock(out *bytes.Buffer, typ byte, flags uint64, data []byte) {
	out.WriteByte(typ)
	out.Write(EncodeSDNV(nil, flags))
	out.Write(EncodeSDNV(nil, uint64(len(data))))
	out.Write(data)
}

// ParseResult carries the decoded bundle plus the number of input bytes
// consumed, and the offset at which the header (primary + extension
// blocks) ends — allowing a receiver to begin forwarding before the
// payload is fully present (§4.1 "partial parses").
type ParseResult struct {
	Bundle       *bundle.Bundle
	Consumed     int
	HeaderLength int
}

// Parse decodes a canonical bundle serialization produced by Format.
func Parse(b []byte) (*ParseResult, error) {
	pos := 0
	if len(b) < 1 {
		return nil, ErrParseShort
	}
	if b[0] != wireVersion {
		return nil, ErrParseBadVersion
	}
	pos++

	dictLen, n, err := DecodeSDNV(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if uint64(len(b)-pos) < dictLen {
		return nil, ErrParseShort
	}
	packed := b[pos : pos+int(dictLen)]
	pos += int(dictLen)

	bodyLen, n, err := DecodeSDNV(b[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	if uint64(len(b)-pos) < bodyLen {
		return nil, ErrParseShort
	}
	body := b[pos : pos+int(bodyLen)]
	pos += int(bodyLen)

	bun, err := parsePrimaryBody(body, packed)
	if err != nil {
		return nil, err
	}

	for {
		if pos >= len(b) {
			return nil, ErrParseShort
		}
		typ := b[pos]
		pos++
		flagsV, n, err := DecodeSDNV(b[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		length, n, err := DecodeSDNV(b[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		if uint64(len(b)-pos) < length {
			return nil, ErrParseShort
		}
		data := b[pos : pos+int(length)]
		pos += int(length)

		if bundle.ExtBlockType(typ) == bundle.ExtPayload {
			bun.Payload = bundle.Payload{Mode: bundle.MEMORY, Length: int64(len(data)), Received: int64(len(data)), Mem: data}
			return &ParseResult{Bundle: bun, Consumed: pos, HeaderLength: pos - int(length)}, nil
		}
		bun.Ext = append(bun.Ext, bundle.ExtBlock{Type: bundle.ExtBlockType(typ), Flags: bundle.ExtBlockFlags(flagsV), Data: data})
		if bundle.ExtBlockFlags(flagsV)&bundle.FlagLastBlock != 0 {
			// a non-payload block marked last-block with no payload block
			// following is malformed: every bundle carries a payload block.
			return nil, fmt.Errorf("%w: last-block flag set before payload block", ErrParseBadFlags)
		}
	}
}

func parsePrimaryBody(body, packed []byte) (*bundle.Bundle, error) {
	if len(body) < 1 {
		return nil, ErrParseShort
	}
	flagsV, pos, err := DecodeSDNV(body)
	if err != nil {
		return nil, err
	}
	flags := primaryFlags(flagsV)
	offs := make([]uint64, 8)
	for i := range offs {
		v, n, err := DecodeSDNV(body[pos:])
		if err != nil {
			return nil, err
		}
		offs[i] = v
		pos += n
	}
	dst, err := dictEID(packed, offs[0], offs[1])
	if err != nil {
		return nil, err
	}
	src, err := dictEID(packed, offs[2], offs[3])
	if err != nil {
		return nil, err
	}
	rt, err := dictEID(packed, offs[4], offs[5])
	if err != nil {
		return nil, err
	}
	cst, err := dictEID(packed, offs[6], offs[7])
	if err != nil {
		return nil, err
	}

	seconds, n, err := DecodeSDNV(body[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	sequence, n, err := DecodeSDNV(body[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	lifetime, n, err := DecodeSDNV(body[pos:])
	if err != nil {
		return nil, err
	}
	pos += n

	isFragment, opts, pri := decodePrimaryFlags(flags)
	bun := &bundle.Bundle{
		LocalID:  bundle.NewLocalID(),
		Source:   src,
		Dest:     dst,
		ReplyTo:  rt,
		Custodian: cst,
		Priority: pri,
		Opts:     opts,
		Lifetime: lifetime,
		ID:       bundle.Identity{Source: src, Timestamp: bundle.Timestamp{Seconds: seconds, Sequence: sequence}},
	}
	bun.IsFragment = isFragment
	if isFragment {
		fragOffset, n, err := DecodeSDNV(body[pos:])
		if err != nil {
			return nil, err
		}
		pos += n
		origLength, _, err := DecodeSDNV(body[pos:])
		if err != nil {
			return nil, err
		}
		bun.FragOffset = fragOffset
		bun.OrigLength = origLength
	}
	return bun, nil
}

func dictEID(packed []byte, schemeOff, sspOff uint64) (eid.EID, error) {
	scheme, err := lookupDictString(packed, schemeOff)
	if err != nil {
		return eid.EID{}, err
	}
	ssp, err := lookupDictString(packed, sspOff)
	if err != nil {
		return eid.EID{}, err
	}
	if scheme == "" && ssp == "" {
		return eid.EID{}, nil
	}
	return eid.New(scheme, ssp)
}
